package workflow

import "testing"

func TestShipQuantities(t *testing.T) {
	cases := []struct {
		name          string
		inventory     int
		backlog       int
		incomingOrder int
		wantShipped   int
		wantBacklog   int
		wantInventory int
	}{
		{"fully stocked", 12, 0, 4, 4, 0, 8},
		{"short with backlog", 5, 2, 8, 5, 5, 0},
		{"exactly enough", 10, 4, 6, 10, 0, 0},
		{"empty shelf", 0, 3, 5, 0, 8, 0},
		{"no demand", 7, 0, 0, 0, 0, 7},
		{"backlog only", 6, 9, 0, 6, 3, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			shipped, backlog, inventory := shipQuantities(tc.inventory, tc.backlog, tc.incomingOrder)
			if shipped != tc.wantShipped || backlog != tc.wantBacklog || inventory != tc.wantInventory {
				t.Fatalf("shipQuantities(%d, %d, %d) = (%d, %d, %d), want (%d, %d, %d)",
					tc.inventory, tc.backlog, tc.incomingOrder,
					shipped, backlog, inventory,
					tc.wantShipped, tc.wantBacklog, tc.wantInventory)
			}
		})
	}
}

func TestShipQuantitiesConservation(t *testing.T) {
	for inventory := 0; inventory <= 15; inventory++ {
		for backlog := 0; backlog <= 10; backlog++ {
			for order := 0; order <= 10; order++ {
				shipped, newBacklog, newInventory := shipQuantities(inventory, backlog, order)
				if shipped < 0 || newBacklog < 0 || newInventory < 0 {
					t.Fatalf("negative result for (%d, %d, %d): (%d, %d, %d)",
						inventory, backlog, order, shipped, newBacklog, newInventory)
				}
				if shipped+newBacklog != order+backlog {
					t.Fatalf("demand not conserved for (%d, %d, %d)", inventory, backlog, order)
				}
				if shipped+newInventory != inventory {
					t.Fatalf("stock not conserved for (%d, %d, %d)", inventory, backlog, order)
				}
			}
		}
	}
}
