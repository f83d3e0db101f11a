package models

// PlayerRole is one stage of the four-tier supply chain.
type PlayerRole string

const (
	RoleRetailer     PlayerRole = "retailer"
	RoleWholesaler   PlayerRole = "wholesaler"
	RoleDistributor  PlayerRole = "distributor"
	RoleManufacturer PlayerRole = "manufacturer"
)

// Abstract endpoints of the chain. They never own a player row: the customer
// absorbs retailer shipments, the factory fulfills manufacturer orders with
// unlimited capacity.
const (
	EndpointCustomer = "customer"
	EndpointFactory  = "factory"
)

// AllRoles is ordered downstream to upstream.
var AllRoles = []PlayerRole{RoleRetailer, RoleWholesaler, RoleDistributor, RoleManufacturer}

func (r PlayerRole) Valid() bool {
	switch r {
	case RoleRetailer, RoleWholesaler, RoleDistributor, RoleManufacturer:
		return true
	}
	return false
}

// UpstreamRecipient is who receives this role's replenishment ORDER.
// The manufacturer orders from the factory.
func (r PlayerRole) UpstreamRecipient() string {
	switch r {
	case RoleRetailer:
		return string(RoleWholesaler)
	case RoleWholesaler:
		return string(RoleDistributor)
	case RoleDistributor:
		return string(RoleManufacturer)
	default:
		return EndpointFactory
	}
}

// DownstreamRecipient is who receives this role's SHIPMENT.
// The retailer ships to the customer.
func (r PlayerRole) DownstreamRecipient() string {
	switch r {
	case RoleWholesaler:
		return string(RoleRetailer)
	case RoleDistributor:
		return string(RoleWholesaler)
	case RoleManufacturer:
		return string(RoleDistributor)
	default:
		return EndpointCustomer
	}
}

// DownstreamRole is the role whose outgoing order becomes this role's next
// incoming order, or false for the retailer (which takes external demand).
func (r PlayerRole) DownstreamRole() (PlayerRole, bool) {
	switch r {
	case RoleWholesaler:
		return RoleRetailer, true
	case RoleDistributor:
		return RoleWholesaler, true
	case RoleManufacturer:
		return RoleDistributor, true
	}
	return "", false
}
