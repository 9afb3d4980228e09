package domain

// CartItem is one product line in the cart. ProductID is unique within a cart.
type CartItem struct {
	ProductID   string `json:"productId" validate:"required"`
	ProductName string `json:"productName" validate:"required"`
	Price       int64  `json:"price" validate:"gt=0"`
	Quantity    int    `json:"quantity" validate:"gte=0"`
	Image       string `json:"image,omitempty"`
	SellerID    string `json:"sellerId,omitempty"`
	SellerName  string `json:"sellerName,omitempty"`
}

// Subtotal returns price times quantity in the smallest currency unit.
func (i CartItem) Subtotal() int64 {
	return i.Price * int64(i.Quantity)
}

// Items is an ordered list of cart lines.
type Items []CartItem

// TotalItems returns the sum of quantities.
func (it Items) TotalItems() int {
	var n int
	for _, item := range it {
		n += item.Quantity
	}
	return n
}

// TotalPrice returns the sum of line subtotals.
func (it Items) TotalPrice() int64 {
	var total int64
	for _, item := range it {
		total += item.Subtotal()
	}
	return total
}

// IndexOf returns the position of productID, or -1.
func (it Items) IndexOf(productID string) int {
	for i := range it {
		if it[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Receipt summarises the lines removed from the cart by a checkout.
type Receipt struct {
	Items      Items `json:"items"`
	TotalPrice int64 `json:"totalPrice"`
	Count      int   `json:"count"`
}

// Clone returns a copy that shares no backing array with it.
func (it Items) Clone() Items {
	out := make(Items, len(it))
	copy(out, it)
	return out
}
