package domain

type User struct {
	ID          string `db:"id"`
	Email       string `db:"email"`
	FullName    string `db:"full_name"`
	Hash        string `db:"password_hash"`
	Phone       string `db:"phone"`
	Address     string `db:"address"`
	City        string `db:"city"`
	ZipCode     string `db:"zip_code"`
	IsAdmin     bool   `db:"is_admin"`
	IsSeller    bool   `db:"is_seller"`
	Active      bool   `db:"active"`
	CreatedAt   string `db:"created_at"`
	LastLoginAt string `db:"last_login_at"`
}

// Identity is the validated caller of a request. The zero value is an anonymous caller.
type Identity struct {
	UserID  string
	Name    string
	Email   string
	IsAdmin bool
}

func (i Identity) Authenticated() bool { return i.UserID != "" }

func IdentityOf(u *User) Identity {
	if u == nil {
		return Identity{}
	}
	return Identity{UserID: u.ID, Name: u.FullName, Email: u.Email, IsAdmin: u.IsAdmin}
}
