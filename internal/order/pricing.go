package order

// Pricing holds the computed amounts for one checkout attempt, all in kobo.
// Tax and discount are carried in the schema but not computed anywhere in
// the current flow, so they stay zero.
type Pricing struct {
	Subtotal       int64
	ShippingCost   int64
	TaxAmount      int64
	DiscountAmount int64
	Total          int64
}

// CalculatePricing sums the cart lines and adds the selected shipping
// method's stored price. This is the single shipping policy: the method's
// price is frozen into the order; there is no free-shipping threshold.
func CalculatePricing(items []CartItem, method *ShippingMethod) Pricing {
	var subtotal int64
	for _, item := range items {
		subtotal += item.UnitPrice * int64(item.Quantity)
	}

	p := Pricing{
		Subtotal:     subtotal,
		ShippingCost: method.Price,
	}
	p.Total = p.Subtotal + p.ShippingCost + p.TaxAmount - p.DiscountAmount
	return p
}
