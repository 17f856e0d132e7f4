package models

// Resource типизированное имя коллекции. Маршрутизатор привязывает его к маршруту
// один раз при построении, дальше по пути запроса ничего не вычисляется
type Resource int

const (
	ResourceUnknown Resource = iota
	ResourceUsers
	ResourceProducts
	ResourceCategories
	ResourceCart
	ResourceOrders
	ResourceAddresses
	ResourceWishlists
	ResourcePayments
	ResourceReviews
	ResourceCoupons
)

// Policy определяет, кто может изменять записи коллекции
type Policy int

const (
	// PolicyOpen коллекция не проверяется слоем авторизации
	PolicyOpen Policy = iota
	// PolicyAdmin изменять может только администратор
	PolicyAdmin
	// PolicyOwner изменять может только владелец записи
	PolicyOwner
)

type resourceInfo struct {
	collection string
	foreignKey string
	policy     Policy
}

var resources = map[Resource]resourceInfo{
	ResourceUsers:      {collection: "users", foreignKey: "userId", policy: PolicyOwner},
	ResourceProducts:   {collection: "products", foreignKey: "productId", policy: PolicyAdmin},
	ResourceCategories: {collection: "categories", foreignKey: "categoryId", policy: PolicyAdmin},
	ResourceCart:       {collection: "cart", foreignKey: "cartId", policy: PolicyOwner},
	ResourceOrders:     {collection: "orders", foreignKey: "orderId", policy: PolicyOwner},
	ResourceAddresses:  {collection: "addresses", foreignKey: "addressId", policy: PolicyOwner},
	ResourceWishlists:  {collection: "wishlists", foreignKey: "wishlistId", policy: PolicyOwner},
	ResourcePayments:   {collection: "payments", foreignKey: "paymentId", policy: PolicyOwner},
	ResourceReviews:    {collection: "reviews", foreignKey: "reviewId", policy: PolicyOwner},
	ResourceCoupons:    {collection: "coupons", foreignKey: "couponId", policy: PolicyOpen},
}

// Resources возвращает все коллекции в фиксированном порядке
func Resources() []Resource {
	return []Resource{
		ResourceUsers,
		ResourceProducts,
		ResourceCategories,
		ResourceCart,
		ResourceOrders,
		ResourceAddresses,
		ResourceWishlists,
		ResourcePayments,
		ResourceReviews,
		ResourceCoupons,
	}
}

// ParseResource ищет коллекцию по имени
func ParseResource(name string) (Resource, bool) {
	for res, info := range resources {
		if info.collection == name {
			return res, true
		}
	}
	return ResourceUnknown, false
}

// Collection имя коллекции в документе
func (r Resource) Collection() string {
	return resources[r].collection
}

func (r Resource) String() string {
	if c := r.Collection(); c != "" {
		return c
	}
	return "unknown"
}

// Policy возвращает политику изменения записей
func (r Resource) Policy() Policy {
	return resources[r].policy
}

// ForeignKey поле, которым записи других коллекций ссылаются на эту (products -> productId)
func (r Resource) ForeignKey() string {
	return resources[r].foreignKey
}

// OwnerField поле записи, определяющее владельца. Пользователь владеет своей записью по id
func (r Resource) OwnerField() string {
	if r == ResourceUsers {
		return IDField
	}
	return "userId"
}

// Route маршрут запроса: коллекция и, для одиночных операций, идентификатор записи
type Route struct {
	Resource Resource
	ID       int64
	HasID    bool
}
