// Package store persiste los datos de referencia (feriados, CER, BADLAR,
// TAMAR) y las calculadoras guardadas sobre PostgreSQL o SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Drivers soportados.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// BatchSize es la cantidad de filas por INSERT en las cargas masivas.
const BatchSize = 500

// PostgresConfig son los datos de conexión (POSTGRES_* en el entorno).
type PostgresConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	DB       string
	SSLMode  string
}

// DSN arma el connection string de lib/pq.
func (c PostgresConfig) DSN() (string, error) {
	if c.User == "" || c.Password == "" || c.Host == "" || c.Port == "" || c.DB == "" {
		return "", fmt.Errorf("faltan variables de entorno de Postgres (POSTGRES_USER/PASSWORD/HOST/PORT/DB)")
	}
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DB, ssl), nil
}

// Store encapsula la base de datos.
type Store struct {
	db     *sql.DB
	driver string
}

// Open abre y verifica la conexión. Para sqlite3 dsn es la ruta del archivo
// (":memory:" para una base en memoria).
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("driver no soportado: %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// una sola conexión: ":memory:" es por conexión
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &Store{db: db, driver: driver}, nil
}

// OpenPostgres abre la base con la configuración de Postgres.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*Store, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	return Open(ctx, DriverPostgres, dsn)
}

// Close cierra la conexión.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifica la conexión.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) serialPK() string {
	if s.driver == DriverSQLite {
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return "SERIAL PRIMARY KEY"
}

// EnsureSchema crea tablas si no existen.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS feriados (
			fecha DATE PRIMARY KEY,
			nombre TEXT NOT NULL DEFAULT '',
			tipo TEXT NOT NULL DEFAULT ''
		);`,
	}
	for _, t := range seriesTables {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			fecha DATE PRIMARY KEY,
			valor NUMERIC NOT NULL
		);`, t))
	}
	stmts = append(stmts, `CREATE TABLE IF NOT EXISTS calculadoras (
			id `+s.serialPK()+`,
			nombre TEXT NOT NULL,
			fecha_compra DATE,
			precio_compra TEXT,
			cantidad_partida TEXT,
			ticker TEXT,
			tasa TEXT,
			formula TEXT,
			renta_tna TEXT,
			spread TEXT,
			tipo_interes_dias TEXT,
			fecha_emision DATE,
			fecha_primera_renta TEXT,
			dias_restar_fecha_fin_dev TEXT DEFAULT '-1',
			fecha_amortizacion DATE,
			porcentaje_amortizacion TEXT,
			periodicidad TEXT,
			intervalo_inicio TEXT,
			intervalo_fin TEXT,
			ajuste_cer BOOLEAN NOT NULL DEFAULT FALSE,
			fecha_creacion TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`)
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

// placeholders devuelve "($1, $2), ($3, $4)..." para n filas de cols columnas.
func placeholders(n, cols int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := 0; j < cols; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*cols+j+1)
		}
		b.WriteByte(')')
	}
	return b.String()
}

// inTx ejecuta fn en una transacción.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// ErrNotFound indica que el registro pedido no existe.
var ErrNotFound = errors.New("no encontrado")
