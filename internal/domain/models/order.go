package models

// OrderItem позиция заказа
type OrderItem struct {
	ProductID int64
	Quantity  float64
}

// OrderItems разбирает поле items записи заказа. Второе значение false,
// если items не массив или какая-то позиция не содержит productId и числового quantity
func OrderItems(doc Document) ([]OrderItem, bool) {
	raw, ok := doc["items"].([]any)
	if !ok {
		return nil, false
	}
	items := make([]OrderItem, 0, len(raw))
	for _, entry := range raw {
		var item Document
		switch m := entry.(type) {
		case map[string]any:
			item = m
		case Document:
			item = m
		default:
			return nil, false
		}
		productID, ok := item.Int64("productId")
		if !ok {
			return nil, false
		}
		quantity, ok := item.Number("quantity")
		if !ok {
			return nil, false
		}
		items = append(items, OrderItem{ProductID: productID, Quantity: quantity})
	}
	return items, true
}
