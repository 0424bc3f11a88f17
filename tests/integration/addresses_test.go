package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"shop-service/internal/service"
	"shop-service/internal/store"
)

func addressRequest(street string, isDefault bool) *service.AddressRequest {
	return &service.AddressRequest{
		Street:    street,
		City:      "Springfield",
		Country:   "US",
		IsDefault: isDefault,
	}
}

func TestCreateDefaultAddressClearsSiblings(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	addresses := service.NewAddressService(st)

	user := createUser(t, st, "addr_create")

	first, err := addresses.CreateAddress(ctx, user.ID, addressRequest("1 First St", true))
	if err != nil {
		t.Fatalf("Create first address: %v", err)
	}
	if !first.IsDefault {
		t.Error("First address should be default")
	}

	second, err := addresses.CreateAddress(ctx, user.ID, addressRequest("2 Second St", true))
	if err != nil {
		t.Fatalf("Create second address: %v", err)
	}
	if !second.IsDefault {
		t.Error("Second address should be default")
	}

	firstAfter, err := addresses.GetAddress(ctx, user.ID, first.ID)
	if err != nil {
		t.Fatalf("Get first address: %v", err)
	}
	if firstAfter.IsDefault {
		t.Error("First address should have lost the default flag")
	}

	n, err := st.CountDefaultAddresses(ctx, user.ID)
	if err != nil {
		t.Fatalf("Count defaults: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected exactly 1 default address, got %d", n)
	}
}

func TestSetDefaultAddress(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	addresses := service.NewAddressService(st)

	user := createUser(t, st, "addr_default")

	a, err := addresses.CreateAddress(ctx, user.ID, addressRequest("1 First St", true))
	if err != nil {
		t.Fatalf("Create address a: %v", err)
	}
	b, err := addresses.CreateAddress(ctx, user.ID, addressRequest("2 Second St", false))
	if err != nil {
		t.Fatalf("Create address b: %v", err)
	}

	promoted, err := addresses.SetDefault(ctx, user.ID, b.ID)
	if err != nil {
		t.Fatalf("Set default: %v", err)
	}
	if !promoted.IsDefault {
		t.Error("Promoted address should be default")
	}

	aAfter, err := addresses.GetAddress(ctx, user.ID, a.ID)
	if err != nil {
		t.Fatalf("Get address a: %v", err)
	}
	if aAfter.IsDefault {
		t.Error("Old default should have been cleared")
	}

	// Re-marking the current default keeps it default.
	again, err := addresses.SetDefault(ctx, user.ID, b.ID)
	if err != nil {
		t.Fatalf("Set default again: %v", err)
	}
	if !again.IsDefault {
		t.Error("Address should stay default")
	}

	n, err := st.CountDefaultAddresses(ctx, user.ID)
	if err != nil {
		t.Fatalf("Count defaults: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected exactly 1 default address, got %d", n)
	}
}

func TestConcurrentSetDefaultKeepsSingleDefault(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	addresses := service.NewAddressService(st)

	user := createUser(t, st, "addr_race")

	ids := make([]int64, 5)
	for i := range ids {
		addr, err := addresses.CreateAddress(ctx, user.ID, addressRequest("Street", false))
		if err != nil {
			t.Fatalf("Create address %d: %v", i, err)
		}
		ids[i] = addr.ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(addressID int64) {
			defer wg.Done()
			if _, err := addresses.SetDefault(ctx, user.ID, addressID); err != nil {
				t.Errorf("Set default %d: %v", addressID, err)
			}
		}(id)
	}
	wg.Wait()

	n, err := st.CountDefaultAddresses(ctx, user.ID)
	if err != nil {
		t.Fatalf("Count defaults: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected exactly 1 default after concurrent updates, got %d", n)
	}
}

func TestAddressOwnershipScoping(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	addresses := service.NewAddressService(st)

	owner := createUser(t, st, "addr_owner")
	other := createUser(t, st, "addr_other")

	addr, err := addresses.CreateAddress(ctx, owner.ID, addressRequest("1 First St", false))
	if err != nil {
		t.Fatalf("Create address: %v", err)
	}

	_, err = addresses.GetAddress(ctx, other.ID, addr.ID)
	if !errors.Is(err, store.ErrAddressNotFound) {
		t.Fatalf("Foreign address should read as not found, got: %v", err)
	}

	_, err = addresses.SetDefault(ctx, other.ID, addr.ID)
	if !errors.Is(err, store.ErrAddressNotFound) {
		t.Fatalf("Foreign set-default should read as not found, got: %v", err)
	}

	err = addresses.DeleteAddress(ctx, other.ID, addr.ID)
	if !errors.Is(err, store.ErrAddressNotFound) {
		t.Fatalf("Foreign delete should read as not found, got: %v", err)
	}

	if err := addresses.DeleteAddress(ctx, owner.ID, addr.ID); err != nil {
		t.Fatalf("Delete own address: %v", err)
	}
}

func TestListAddressesDefaultFirst(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	addresses := service.NewAddressService(st)

	user := createUser(t, st, "addr_list")

	if _, err := addresses.CreateAddress(ctx, user.ID, addressRequest("1 First St", false)); err != nil {
		t.Fatalf("Create address: %v", err)
	}
	def, err := addresses.CreateAddress(ctx, user.ID, addressRequest("2 Second St", true))
	if err != nil {
		t.Fatalf("Create default address: %v", err)
	}

	list, err := addresses.ListAddresses(ctx, user.ID)
	if err != nil {
		t.Fatalf("List addresses: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 addresses, got %d", len(list))
	}
	if list[0].ID != def.ID {
		t.Errorf("Default address should sort first, got %d", list[0].ID)
	}
}
