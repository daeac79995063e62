package account

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func TestStorageInitAndGet(t *testing.T) {
	s := NewStorage()
	addr := common.HexToAddress("0x0000000000000000000000000000000000000011")
	slot := common.HexToHash("0x01")
	val := common.HexToHash("0x2a")

	info := New(uint256.NewInt(1000), 0, nil)
	s.InitAccount(addr, info, map[common.Hash]common.Hash{slot: val}, false)

	got, ok := s.GetAccountInfo(addr)
	if !ok {
		t.Fatal("expected account to exist")
	}
	if got.Balance.Cmp(uint256.NewInt(1000)) != 0 {
		t.Fatalf("balance: got %s", got.Balance)
	}

	v, ok := s.GetStorage(addr, slot)
	if !ok || v != val {
		t.Fatalf("storage: got %s ok=%v", v, ok)
	}

	if mocked, ok := s.IsMocked(addr); !ok || mocked {
		t.Fatalf("expected mocked=false ok=true, got %v %v", mocked, ok)
	}
}

func TestStorageGetMissing(t *testing.T) {
	s := NewStorage()
	addr := common.HexToAddress("0x01")

	if _, ok := s.GetAccountInfo(addr); ok {
		t.Fatal("expected account to be absent")
	}
	if _, ok := s.GetStorage(addr, common.Hash{}); ok {
		t.Fatal("expected storage slot to be absent")
	}
	if _, ok := s.IsMocked(addr); ok {
		t.Fatal("expected IsMocked second return to be false for unknown address")
	}
	if s.Exists(addr) {
		t.Fatal("expected Exists to be false")
	}
}

func TestStorageUpdateAccountOpportunisticNoOp(t *testing.T) {
	s := NewStorage()
	addr := common.HexToAddress("0x02")

	s.UpdateAccount(addr, Delta{Balance: uint256.NewInt(5)}, true)
	if s.Exists(addr) {
		t.Fatal("opportunistic update on unknown address must not create it")
	}
}

func TestStorageUpdateAccountCreatesWhenNotOpportunistic(t *testing.T) {
	s := NewStorage()
	addr := common.HexToAddress("0x03")
	slot := common.HexToHash("0x07")
	val := common.HexToHash("0x09")

	s.UpdateAccount(addr, Delta{
		Balance: uint256.NewInt(42),
		Slots:   map[common.Hash]common.Hash{slot: val},
	}, false)

	got, ok := s.GetAccountInfo(addr)
	if !ok {
		t.Fatal("expected account to be created")
	}
	if got.Balance.Cmp(uint256.NewInt(42)) != 0 {
		t.Fatalf("balance: got %s", got.Balance)
	}
	v, ok := s.GetStorage(addr, slot)
	if !ok || v != val {
		t.Fatalf("storage: got %s ok=%v", v, ok)
	}
}

func TestStorageTransientShadowsPermanent(t *testing.T) {
	s := NewStorage()
	addr := common.HexToAddress("0x04")
	slot := common.HexToHash("0x01")
	permanentVal := common.HexToHash("0xaa")
	transientVal := common.HexToHash("0xbb")

	info := New(nil, 0, nil)
	s.InitAccount(addr, info, map[common.Hash]common.Hash{slot: permanentVal}, true)

	s.UpdateAccount(addr, Delta{Slots: map[common.Hash]common.Hash{slot: transientVal}}, true)

	v, ok := s.GetStorage(addr, slot)
	if !ok || v != transientVal {
		t.Fatalf("expected transient value to shadow permanent, got %s ok=%v", v, ok)
	}

	mocked, ok := s.IsMocked(addr)
	if !ok || !mocked {
		t.Fatalf("expected mocked=true, got %v %v", mocked, ok)
	}
}

func TestStorageUpdateAccountCode(t *testing.T) {
	s := NewStorage()
	addr := common.HexToAddress("0x05")
	code := []byte{0x60, 0x00, 0x60, 0x00}

	s.UpdateAccount(addr, Delta{Code: code}, false)

	got, ok := s.GetAccountInfo(addr)
	if !ok {
		t.Fatal("expected account to exist")
	}
	if string(got.Code) != string(code) {
		t.Fatalf("code mismatch")
	}
	if got.CodeHash == (common.Hash{}) {
		t.Fatal("expected non-zero code hash after code update")
	}
}

func TestAccountCloneIsIndependent(t *testing.T) {
	addr := common.HexToHash("0x01")
	a := New(uint256.NewInt(10), 1, []byte{0x01})
	a.Permanent[addr] = common.HexToHash("0x02")

	b := a.Clone()
	b.Balance.Add(b.Balance, uint256.NewInt(1))
	b.Permanent[addr] = common.HexToHash("0x03")

	if a.Balance.Cmp(uint256.NewInt(10)) != 0 {
		t.Fatalf("clone mutation leaked into original balance: %s", a.Balance)
	}
	if a.Permanent[addr] != common.HexToHash("0x02") {
		t.Fatal("clone mutation leaked into original storage map")
	}
}
