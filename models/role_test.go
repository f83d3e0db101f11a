package models

import "testing"

func TestRoleTopology(t *testing.T) {
	cases := []struct {
		role       PlayerRole
		orderTo    string
		shipTo     string
		downstream PlayerRole
		hasPlayer  bool
	}{
		{RoleRetailer, "wholesaler", "customer", "", false},
		{RoleWholesaler, "distributor", "retailer", RoleRetailer, true},
		{RoleDistributor, "manufacturer", "wholesaler", RoleWholesaler, true},
		{RoleManufacturer, "factory", "distributor", RoleDistributor, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			if got := tc.role.UpstreamRecipient(); got != tc.orderTo {
				t.Errorf("UpstreamRecipient() = %q, want %q", got, tc.orderTo)
			}
			if got := tc.role.DownstreamRecipient(); got != tc.shipTo {
				t.Errorf("DownstreamRecipient() = %q, want %q", got, tc.shipTo)
			}
			ds, ok := tc.role.DownstreamRole()
			if ok != tc.hasPlayer || ds != tc.downstream {
				t.Errorf("DownstreamRole() = (%q, %v), want (%q, %v)", ds, ok, tc.downstream, tc.hasPlayer)
			}
		})
	}
}

func TestRoleValid(t *testing.T) {
	for _, role := range AllRoles {
		if !role.Valid() {
			t.Errorf("%s should be valid", role)
		}
	}
	for _, bad := range []PlayerRole{"", "customer", "factory", "Retailer", "supplier"} {
		if bad.Valid() {
			t.Errorf("%q should be invalid", bad)
		}
	}
}

func TestChainIsClosed(t *testing.T) {
	// Every shipment recipient that is a role must order from the shipper.
	for _, role := range AllRoles {
		ds, ok := role.DownstreamRole()
		if !ok {
			continue
		}
		if ds.UpstreamRecipient() != string(role) {
			t.Errorf("%s ships to %s but %s orders from %s", role, ds, ds, ds.UpstreamRecipient())
		}
	}
}

func TestLeadTimePerRole(t *testing.T) {
	game := &Game{
		RetailerLeadTime:     1,
		WholesalerLeadTime:   2,
		DistributorLeadTime:  3,
		ManufacturerLeadTime: 4,
	}
	want := map[PlayerRole]int{
		RoleRetailer:     1,
		RoleWholesaler:   2,
		RoleDistributor:  3,
		RoleManufacturer: 4,
	}
	for role, w := range want {
		if got := game.LeadTime(role); got != w {
			t.Errorf("LeadTime(%s) = %d, want %d", role, got, w)
		}
	}
}
