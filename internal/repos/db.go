package repos

import (
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	applog "storefront/internal/log"
)

// OpenDB opens the store, applies the schema and seeds demo data. A single
// connection is kept open, so write transactions serialize and an in-memory
// DSN stays one database.
func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	if err = db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	if err := seedCatalog(db); err != nil {
		return nil, err
	}
	if err := seedUsers(db); err != nil {
		return nil, err
	}
	return db, nil
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

func ensureSchema(db *sqlx.DB) error {
	schema := `
-- Categories
CREATE TABLE IF NOT EXISTS categories(
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  lifecycle TEXT NOT NULL DEFAULT 'ACTIVE' CHECK (lifecycle IN ('ACTIVE','DELETED')),
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_live_name ON categories(LOWER(name)) WHERE lifecycle = 'ACTIVE';

-- Products
CREATE TABLE IF NOT EXISTS products(
  id TEXT PRIMARY KEY,
  category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE RESTRICT,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  price TEXT NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  image_url TEXT NOT NULL DEFAULT '',
  active INTEGER NOT NULL DEFAULT 1,
  lifecycle TEXT NOT NULL DEFAULT 'ACTIVE' CHECK (lifecycle IN ('ACTIVE','DELETED')),
  version INTEGER NOT NULL DEFAULT 1,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id);
CREATE INDEX IF NOT EXISTS idx_products_name     ON products(LOWER(name));

-- Users & Sessions
CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  full_name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  phone TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL DEFAULT '',
  city TEXT NOT NULL DEFAULT '',
  zip_code TEXT NOT NULL DEFAULT '',
  is_admin INTEGER NOT NULL DEFAULT 0,
  is_seller INTEGER NOT NULL DEFAULT 0,
  active INTEGER NOT NULL DEFAULT 1,
  created_at TEXT NOT NULL,
  last_login_at TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));

CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  created_at TEXT NOT NULL,
  last_seen INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

-- Carts
CREATE TABLE IF NOT EXISTS carts(
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cart_lines(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  cart_id TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
  product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  quantity INTEGER NOT NULL CHECK (quantity BETWEEN 1 AND 999),
  added_at TEXT NOT NULL,
  UNIQUE (cart_id, product_id)
);

-- Checkout drafts (one per session, between review and complete)
CREATE TABLE IF NOT EXISTS checkout_drafts(
  session_id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  shipping_address TEXT NOT NULL,
  shipping_city TEXT NOT NULL DEFAULT '',
  shipping_zip TEXT NOT NULL DEFAULT '',
  shipping_phone TEXT NOT NULL DEFAULT '',
  notes TEXT NOT NULL DEFAULT '',
  idempotency_key TEXT NOT NULL,
  created_at TEXT NOT NULL
);

-- Orders
CREATE TABLE IF NOT EXISTS orders(
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id),
  customer_name TEXT NOT NULL DEFAULT '',
  order_date TEXT NOT NULL,
  total TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'Pending' CHECK (status IN ('Pending','Shipped','Delivered','Cancelled')),
  shipping_address TEXT NOT NULL,
  shipping_city TEXT NOT NULL DEFAULT '',
  shipping_zip TEXT NOT NULL DEFAULT '',
  shipping_phone TEXT NOT NULL DEFAULT '',
  notes TEXT NOT NULL DEFAULT '',
  tracking_number TEXT NOT NULL DEFAULT '',
  shipped_at TEXT NOT NULL DEFAULT '',
  delivered_at TEXT NOT NULL DEFAULT '',
  idempotency_key TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_orders_user_date ON orders(user_id, order_date);
CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_idempotency ON orders(idempotency_key) WHERE idempotency_key <> '';

-- Order lines keep a snapshot and no product FK so history survives hard deletes.
CREATE TABLE IF NOT EXISTS order_lines(
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  price TEXT NOT NULL,
  quantity INTEGER NOT NULL CHECK (quantity >= 1),
  PRIMARY KEY (order_id, product_id)
);

-- Outbox
CREATE TABLE IF NOT EXISTS outbox(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  event_id TEXT NOT NULL UNIQUE,
  topic TEXT NOT NULL,
  key TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at TEXT NOT NULL,
  sent_at TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at, id);
`
	_, err := db.Exec(schema)
	return err
}

// seedCatalog inserts demo categories and products once; safe on every start.
func seedCatalog(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM categories`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	applog.Logger().Info("seed: inserting demo categories and products")

	ts := now()
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	cats := [][3]string{
		{"consoles", "Consoles", "Home and handheld game consoles"},
		{"radios", "Radios", "Vintage tube and transistor radios"},
		{"accessories", "Accessories", "Controllers, cables and spare parts"},
	}
	for _, c := range cats {
		if _, err := tx.Exec(`INSERT INTO categories(id,name,description,created_at) VALUES(?,?,?,?)`,
			c[0], c[1], c[2], ts); err != nil {
			return err
		}
	}

	type p struct {
		id, cat, name, desc, price string
		stock                      int
	}
	prods := []p{
		{"gbc-001", "consoles", "Game Boy Color", "Handheld console, tested and cleaned", "129.99", 8},
		{"nes-001", "consoles", "NES Console", "Classic 8-bit console with one controller", "199.00", 5},
		{"snes-001", "consoles", "Super Nintendo Console", "16-bit console with controller", "219.00", 0},
		{"radio-001", "radios", "Philco 1939 Tube Radio", "Vintage vacuum tube radio", "349.50", 2},
		{"radio-002", "radios", "Zenith Royal 500", "Pocket transistor radio, works on 9V", "89.00", 12},
		{"pad-001", "accessories", "Controller Extension Cable", "Two-metre extension cable", "9.99", 40},
	}
	for _, x := range prods {
		if _, err := tx.Exec(`
			INSERT INTO products(id,category_id,name,description,price,stock,image_url,created_at)
			VALUES(?,?,?,?,?,?,?,?)
		`, x.id, x.cat, x.name, x.desc, x.price, x.stock, "/media/products/no-image.jpg", ts); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// seedUsers ensures two customers and one admin exist (idempotent).
func seedUsers(db *sqlx.DB) error {
	type u struct {
		ID, Email, Name string
		Admin           bool
	}
	users := []u{
		{"u-alice", "alice@storefront.test", "Alice Shopper", false},
		{"u-bob", "bob@storefront.test", "Bob Shopper", false},
		{"u-admin", "admin@storefront.test", "Store Admin", true},
	}

	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM users WHERE id IN ('u-alice','u-bob','u-admin')`); err != nil {
		return err
	}
	if n == len(users) {
		return nil
	}
	h, err := bcrypt.GenerateFromPassword([]byte("Passw0rd!"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	ts := now()
	for _, x := range users {
		if _, err := tx.Exec(`
			INSERT INTO users(id,email,full_name,password_hash,address,city,zip_code,is_admin,created_at)
			VALUES(?,?,?,?,?,?,?,?,?)
			ON CONFLICT(id) DO NOTHING
		`, x.ID, x.Email, x.Name, string(h), "1 Main Street", "College Park", "20742", x.Admin, ts); err != nil {
			return err
		}
	}
	return tx.Commit()
}
