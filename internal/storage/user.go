package storage

// User is an account that can own and attend events. PasswordHash is opaque
// to the storage layer; hashing lives in the auth package.
type User struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Email        string `db:"email" json:"email"`
	PasswordHash string `db:"password_hash" json:"-"`
}
