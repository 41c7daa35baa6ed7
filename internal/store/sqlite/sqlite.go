package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/barscout/barscout-server/internal/geo"
	"github.com/barscout/barscout-server/internal/store"
)

//go:embed schema.sql
var schema string

const dsnOptions = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema or seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// ApplySchema creates all tables if they do not exist.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, role)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash, store.RoleUser)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert user: %w", store.ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, role, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, role, created_at
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

// SetUserRole changes a user's role.
func (s *SQLiteStore) SetUserRole(ctx context.Context, username string, role store.Role) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE username = ?`, role, username)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %q: %w", username, store.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// ==== VenueStore implementation ====

const venueColumns = `id, name, address, latitude, longitude, image_url, created_by, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVenue(row rowScanner) (*store.Venue, error) {
	var (
		v         store.Venue
		lat, lng  sql.NullFloat64
		createdBy sql.NullInt64
	)
	if err := row.Scan(&v.ID, &v.Name, &v.Address, &lat, &lng, &v.ImageURL, &createdBy, &v.CreatedAt); err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		v.Coordinates = &geo.Point{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	if createdBy.Valid {
		v.CreatedBy = &createdBy.Int64
	}
	return &v, nil
}

// CreateVenue inserts a venue. An empty ID is filled with a new UUID.
func (s *SQLiteStore) CreateVenue(ctx context.Context, v *store.Venue) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}

	var lat, lng sql.NullFloat64
	if v.Coordinates != nil {
		lat = sql.NullFloat64{Float64: v.Coordinates.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: v.Coordinates.Longitude, Valid: true}
	}

	query := `
		INSERT INTO venues (id, name, address, latitude, longitude, image_url, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, v.ID, v.Name, v.Address, lat, lng, v.ImageURL, v.CreatedBy); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert venue: %w", store.ErrConflict)
		}
		return fmt.Errorf("insert venue: %w", err)
	}

	created, err := s.GetVenue(ctx, v.ID)
	if err != nil {
		return err
	}
	*v = *created
	return nil
}

// GetVenue retrieves a venue by ID.
func (s *SQLiteStore) GetVenue(ctx context.Context, id string) (*store.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues WHERE id = ?`
	v, err := scanVenue(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("venue %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query venue: %w", err)
	}
	return v, nil
}

// ListVenues lists all venues, newest first.
func (s *SQLiteStore) ListVenues(ctx context.Context) ([]*store.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues ORDER BY created_at DESC, name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query venues: %w", err)
	}
	defer rows.Close()

	var venues []*store.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan venue: %w", err)
		}
		venues = append(venues, v)
	}
	return venues, rows.Err()
}

// ListVenueLocations lists venues that have coordinates.
func (s *SQLiteStore) ListVenueLocations(ctx context.Context) ([]geo.VenueLocation, error) {
	query := `
		SELECT id, latitude, longitude
		FROM venues
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query venue locations: %w", err)
	}
	defer rows.Close()

	locations := make([]geo.VenueLocation, 0)
	for rows.Next() {
		var (
			id string
			p  geo.Point
		)
		if err := rows.Scan(&id, &p.Latitude, &p.Longitude); err != nil {
			return nil, fmt.Errorf("scan venue location: %w", err)
		}
		locations = append(locations, geo.VenueLocation{VenueID: id, Coordinates: &p})
	}
	return locations, rows.Err()
}

// SetRating records a 1-5 rating, replacing the user's previous rating.
func (s *SQLiteStore) SetRating(ctx context.Context, venueID string, userID int64, value int) error {
	query := `
		INSERT INTO venue_ratings (venue_id, user_id, value)
		VALUES (?, ?, ?)
		ON CONFLICT (venue_id, user_id) DO UPDATE SET value = excluded.value, created_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, venueID, userID, value); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("set rating: %w", store.ErrNotFound)
		}
		return fmt.Errorf("set rating: %w", err)
	}
	return nil
}

// AddCoverFee records a cover fee report.
func (s *SQLiteStore) AddCoverFee(ctx context.Context, venueID string, userID int64, amount float64) (*store.CoverFee, error) {
	query := `
		INSERT INTO venue_cover_fees (venue_id, user_id, amount)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, venueID, userID, amount)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("add cover fee: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("add cover fee: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	var fee store.CoverFee
	err = s.db.QueryRowContext(ctx, coverFeeQuery+` WHERE id = ?`, id).
		Scan(&fee.ID, &fee.VenueID, &fee.UserID, &fee.Amount, &fee.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("query cover fee: %w", err)
	}
	return &fee, nil
}

// AddTrafficReport records a crowd level report.
func (s *SQLiteStore) AddTrafficReport(ctx context.Context, venueID string, userID int64, level store.TrafficLevel) (*store.TrafficReport, error) {
	query := `
		INSERT INTO venue_traffic_reports (venue_id, user_id, level)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, venueID, userID, level)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("add traffic report: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("add traffic report: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	var report store.TrafficReport
	err = s.db.QueryRowContext(ctx, trafficReportQuery+` WHERE id = ?`, id).
		Scan(&report.ID, &report.VenueID, &report.UserID, &report.Level, &report.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("query traffic report: %w", err)
	}
	return &report, nil
}

const (
	coverFeeQuery      = `SELECT id, venue_id, user_id, amount, created_at FROM venue_cover_fees`
	trafficReportQuery = `SELECT id, venue_id, user_id, level, created_at FROM venue_traffic_reports`
)

// GetVenueStats aggregates ratings, latest reports, and queue size.
func (s *SQLiteStore) GetVenueStats(ctx context.Context, venueID string) (*store.VenueStats, error) {
	var stats store.VenueStats

	var avg sql.NullFloat64
	ratingQuery := `SELECT COUNT(*), AVG(value) FROM venue_ratings WHERE venue_id = ?`
	if err := s.db.QueryRowContext(ctx, ratingQuery, venueID).Scan(&stats.RatingCount, &avg); err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	if avg.Valid {
		stats.AverageRating = &avg.Float64
	}

	coverQuery := coverFeeQuery + ` WHERE venue_id = ? ORDER BY id DESC LIMIT 1`
	var fee store.CoverFee
	err := s.db.QueryRowContext(ctx, coverQuery, venueID).Scan(&fee.ID, &fee.VenueID, &fee.UserID, &fee.Amount, &fee.CreatedAt)
	switch {
	case err == nil:
		stats.LatestCover = &fee
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("query cover fee: %w", err)
	}

	trafficQuery := trafficReportQuery + ` WHERE venue_id = ? ORDER BY id DESC LIMIT 1`
	var report store.TrafficReport
	err = s.db.QueryRowContext(ctx, trafficQuery, venueID).Scan(&report.ID, &report.VenueID, &report.UserID, &report.Level, &report.CreatedAt)
	switch {
	case err == nil:
		stats.LatestTraffic = &report
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("query traffic report: %w", err)
	}

	count, err := s.QueueCount(ctx, venueID)
	if err != nil {
		return nil, err
	}
	stats.QueueCount = count

	return &stats, nil
}

// ==== QueueStore implementation ====

// JoinQueue adds the user to the venue queue. Returns false if already queued.
func (s *SQLiteStore) JoinQueue(ctx context.Context, venueID string, userID int64) (bool, error) {
	query := `
		INSERT INTO queue_entries (venue_id, user_id)
		VALUES (?, ?)
		ON CONFLICT (venue_id, user_id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query, venueID, userID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, fmt.Errorf("join queue: %w", store.ErrNotFound)
		}
		return false, fmt.Errorf("join queue: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// LeaveQueue removes the user from the venue queue. Returns false if not queued.
func (s *SQLiteStore) LeaveQueue(ctx context.Context, venueID string, userID int64) (bool, error) {
	query := `DELETE FROM queue_entries WHERE venue_id = ? AND user_id = ?`
	result, err := s.db.ExecContext(ctx, query, venueID, userID)
	if err != nil {
		return false, fmt.Errorf("leave queue: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// InQueue checks if the user is queued at the venue.
func (s *SQLiteStore) InQueue(ctx context.Context, venueID string, userID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM queue_entries WHERE venue_id = ? AND user_id = ?)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, venueID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check queue: %w", err)
	}
	return exists, nil
}

// QueueCount returns the number of queued users.
func (s *SQLiteStore) QueueCount(ctx context.Context, venueID string) (int, error) {
	query := `SELECT COUNT(*) FROM queue_entries WHERE venue_id = ?`
	var count int
	if err := s.db.QueryRowContext(ctx, query, venueID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count queue: %w", err)
	}
	return count, nil
}

var _ store.Store = (*SQLiteStore)(nil)
