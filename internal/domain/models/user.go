package models

// Роли пользователей
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// PasswordField поле записи пользователя, в котором лежит bcrypt-хэш пароля
const PasswordField = "password"

// User представляет пользователя
type User struct {
	ID       int64
	Name     string
	Email    string
	PassHash []byte
	Role     string
}

// IsAdmin сообщает, что у пользователя роль администратора
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// UserFromDocument собирает пользователя из записи коллекции users
func UserFromDocument(doc Document) (*User, bool) {
	id, ok := doc.ID()
	if !ok {
		return nil, false
	}
	user := &User{ID: id}
	user.Name, _ = doc.String("name")
	user.Email, _ = doc.String("email")
	user.Role, _ = doc.String("role")
	if hash, ok := doc.String(PasswordField); ok {
		user.PassHash = []byte(hash)
	}
	if user.Role == "" {
		user.Role = RoleCustomer
	}
	return user, true
}

// PublicUser запись пользователя без учетных данных, только {id, name, email, role}
func PublicUser(doc Document) Document {
	out := Document{}
	for _, key := range []string{IDField, "name", "email", "role"} {
		if v, ok := doc[key]; ok {
			out[key] = v
		}
	}
	return out
}
