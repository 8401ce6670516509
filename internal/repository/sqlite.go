package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/model"
)

// sqliteTimeLayout имеет фиксированную ширину, поэтому строки сортируются так же, как время.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository хранит данные во встроенной базе SQLite на стороне клиента.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository открывает (или создаёт) файл базы и применяет миграции.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "" && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create database directory: %v", ErrStorageUnavailable, err)
		}
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %v", ErrStorageUnavailable, err)
	}

	r := &SQLiteRepository{db: db}

	if err := r.runMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return r, nil
}

func (r *SQLiteRepository) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, r.db, "migrations/sqlite"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает соединение с базой.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func sqliteCode(err error) int {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()
	}
	return 0
}

// classifySQLite переводит ошибки ввода-вывода и переполнения SQLite в ErrStorageUnavailable.
func classifySQLite(op string, err error) error {
	switch sqliteCode(err) & 0xff {
	case sqlite3.SQLITE_FULL, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CANTOPEN,
		sqlite3.SQLITE_READONLY, sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateUser создаёт нового пользователя. Уникальность почты проверяется индексом по lower(email).
func (r *SQLiteRepository) CreateUser(ctx context.Context, email string, passwordHash []byte) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, created_at) VALUES (?, ?, ?)`,
		email, passwordHash, formatTime(time.Now()),
	)
	if err != nil {
		if sqliteCode(err) == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
		}
		return 0, classifySQLite("create user", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// GetUserByEmail возвращает пользователя по почте без учёта регистра.
func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE lower(email) = lower(?)`,
		email,
	)

	var (
		u         model.User
		createdAt string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, classifySQLite("get user", err)
	}

	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateHospital сохраняет профиль больницы. У пользователя может быть не больше одного профиля.
func (r *SQLiteRepository) CreateHospital(ctx context.Context, h model.Hospital) (int64, error) {
	lat, lng := coordinateArgs(h.Address.Coordinates)

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO hospitals (user_id, name, license_number, address_line1, address_line2, city, state, zip_code,
			latitude, longitude, rep_name, rep_title, rep_email, rep_phone, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.UserID, h.Name, h.LicenseNumber, h.Address.Line1, h.Address.Line2, h.Address.City, h.Address.State,
		h.Address.ZipCode, lat, lng, h.Representative.Name, h.Representative.Title, h.Representative.Email,
		h.Representative.Phone, formatTime(h.CreatedAt),
	)
	if err != nil {
		switch sqliteCode(err) {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return 0, fmt.Errorf("%w: user %d", ErrUserAlreadyHasHospital, h.UserID)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return 0, fmt.Errorf("%w: user %d", ErrUserNotFound, h.UserID)
		}
		return 0, classifySQLite("create hospital", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// GetHospitalByUserID возвращает профиль больницы пользователя.
func (r *SQLiteRepository) GetHospitalByUserID(ctx context.Context, userID int64) (*model.Hospital, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+hospitalColumns+` FROM hospitals WHERE user_id = ?`, userID)

	var (
		h         model.Hospital
		lat, lng  *float64
		createdAt string
	)
	err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.LicenseNumber, &h.Address.Line1, &h.Address.Line2,
		&h.Address.City, &h.Address.State, &h.Address.ZipCode, &lat, &lng, &h.Representative.Name,
		&h.Representative.Title, &h.Representative.Email, &h.Representative.Phone, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHospitalNotFound
		}
		return nil, classifySQLite("get hospital", err)
	}

	h.Address.Coordinates = coordinatesFrom(lat, lng)
	if h.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &h, nil
}

// CreateRequest сохраняет запрос на медикаменты.
func (r *SQLiteRepository) CreateRequest(ctx context.Context, req model.DrugRequest) error {
	drugs, err := json.Marshal(req.Drugs)
	if err != nil {
		return fmt.Errorf("marshal drugs: %w", err)
	}
	lat, lng := coordinateArgs(req.Location.Coordinates)

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO drug_requests (`+requestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.HospitalID, string(drugs), req.Location.City, req.Location.State, req.Location.ZipCode,
		lat, lng, req.MaxDistanceKm, string(req.Status), formatTime(req.CreatedAt), formatTime(req.UpdatedAt),
	)
	if err != nil {
		return classifySQLite("insert request", err)
	}
	return nil
}

// GetRequest возвращает запрос по идентификатору.
func (r *SQLiteRepository) GetRequest(ctx context.Context, id uuid.UUID) (*model.DrugRequest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM drug_requests WHERE id = ?`, id)

	req, err := scanSQLiteRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: request %s", ErrNotFound, id)
		}
		return nil, classifySQLite("get request", err)
	}
	return req, nil
}

// ListRequestsByHospital возвращает запросы больницы, новые первыми.
func (r *SQLiteRepository) ListRequestsByHospital(ctx context.Context, hospitalID int64) ([]model.DrugRequest, error) {
	return r.queryRequests(ctx,
		`SELECT `+requestColumns+` FROM drug_requests WHERE hospital_id = ? ORDER BY created_at DESC`,
		hospitalID,
	)
}

// ListActiveRequests возвращает все запросы в статусе pending.
func (r *SQLiteRepository) ListActiveRequests(ctx context.Context) ([]model.DrugRequest, error) {
	return r.queryRequests(ctx,
		`SELECT `+requestColumns+` FROM drug_requests WHERE status = ? ORDER BY created_at`,
		string(model.RequestStatusPending),
	)
}

func (r *SQLiteRepository) queryRequests(ctx context.Context, query string, args ...any) ([]model.DrugRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifySQLite("select requests", err)
	}
	defer rows.Close()

	var res []model.DrugRequest
	for rows.Next() {
		req, err := scanSQLiteRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		res = append(res, *req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func scanSQLiteRequest(s scanner) (*model.DrugRequest, error) {
	var (
		req                  model.DrugRequest
		drugs, status        string
		lat, lng             *float64
		createdAt, updatedAt string
	)
	err := s.Scan(&req.ID, &req.HospitalID, &drugs, &req.Location.City, &req.Location.State,
		&req.Location.ZipCode, &lat, &lng, &req.MaxDistanceKm, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(drugs), &req.Drugs); err != nil {
		return nil, fmt.Errorf("unmarshal drugs: %w", err)
	}
	req.Status = model.RequestStatus(status)
	req.Location.Coordinates = coordinatesFrom(lat, lng)
	if req.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if req.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &req, nil
}

// UpdateRequestStatus переводит запрос из статуса from в статус to.
func (r *SQLiteRepository) UpdateRequestStatus(ctx context.Context, id uuid.UUID, from, to model.RequestStatus, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE drug_requests SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), formatTime(at), id, string(from),
	)
	if err != nil {
		return classifySQLite("update request", err)
	}
	return expectOneRow(res, fmt.Sprintf("request %s", id))
}

func expectOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrStatusChanged, what)
	}
	return nil
}

// CreateOffer сохраняет предложение медикаментов.
func (r *SQLiteRepository) CreateOffer(ctx context.Context, o model.DrugOffer) error {
	drugs, err := json.Marshal(o.Drugs)
	if err != nil {
		return fmt.Errorf("marshal drugs: %w", err)
	}
	lat, lng := coordinateArgs(o.Location.Coordinates)

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO drug_offers (`+offerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.HospitalID, string(drugs), o.Location.City, o.Location.State, o.Location.ZipCode,
		lat, lng, o.MaxDistanceKm, formatNullTime(o.ExpiryDate), string(o.Status),
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
	)
	if err != nil {
		return classifySQLite("insert offer", err)
	}
	return nil
}

// GetOffer возвращает предложение по идентификатору.
func (r *SQLiteRepository) GetOffer(ctx context.Context, id uuid.UUID) (*model.DrugOffer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM drug_offers WHERE id = ?`, id)

	o, err := scanSQLiteOffer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: offer %s", ErrNotFound, id)
		}
		return nil, classifySQLite("get offer", err)
	}
	return o, nil
}

// ListOffersByHospital возвращает предложения больницы, новые первыми.
func (r *SQLiteRepository) ListOffersByHospital(ctx context.Context, hospitalID int64) ([]model.DrugOffer, error) {
	return r.queryOffers(ctx,
		`SELECT `+offerColumns+` FROM drug_offers WHERE hospital_id = ? ORDER BY created_at DESC`,
		hospitalID,
	)
}

// ListAvailableOffers возвращает доступные предложения с неистёкшим сроком на момент now.
func (r *SQLiteRepository) ListAvailableOffers(ctx context.Context, now time.Time) ([]model.DrugOffer, error) {
	return r.queryOffers(ctx,
		`SELECT `+offerColumns+` FROM drug_offers
		 WHERE status = ? AND (expiry_date IS NULL OR expiry_date >= ?)
		 ORDER BY created_at`,
		string(model.OfferStatusAvailable), formatTime(model.ExpiryCutoff(now)),
	)
}

func (r *SQLiteRepository) queryOffers(ctx context.Context, query string, args ...any) ([]model.DrugOffer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifySQLite("select offers", err)
	}
	defer rows.Close()

	var res []model.DrugOffer
	for rows.Next() {
		o, err := scanSQLiteOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func scanSQLiteOffer(s scanner) (*model.DrugOffer, error) {
	var (
		o                    model.DrugOffer
		drugs, status        string
		lat, lng             *float64
		expiry               sql.NullString
		createdAt, updatedAt string
	)
	err := s.Scan(&o.ID, &o.HospitalID, &drugs, &o.Location.City, &o.Location.State, &o.Location.ZipCode,
		&lat, &lng, &o.MaxDistanceKm, &expiry, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(drugs), &o.Drugs); err != nil {
		return nil, fmt.Errorf("unmarshal drugs: %w", err)
	}
	o.Status = model.OfferStatus(status)
	o.Location.Coordinates = coordinatesFrom(lat, lng)
	if o.ExpiryDate, err = parseNullTime(expiry); err != nil {
		return nil, err
	}
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateOfferStatus переводит предложение из статуса from в статус to.
func (r *SQLiteRepository) UpdateOfferStatus(ctx context.Context, id uuid.UUID, from, to model.OfferStatus, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE drug_offers SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), formatTime(at), id, string(from),
	)
	if err != nil {
		return classifySQLite("update offer", err)
	}
	return expectOneRow(res, fmt.Sprintf("offer %s", id))
}

// ExpireOffers помечает просроченными предложения, дата годности которых прошла к моменту now, и возвращает их идентификаторы.
func (r *SQLiteRepository) ExpireOffers(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE drug_offers SET status = ?, updated_at = ?
		 WHERE expiry_date IS NOT NULL AND expiry_date < ? AND status IN (?, ?)
		 RETURNING id`,
		string(model.OfferStatusExpired), formatTime(now), formatTime(model.ExpiryCutoff(now)),
		string(model.OfferStatusAvailable), string(model.OfferStatusReserved),
	)
	if err != nil {
		return nil, classifySQLite("expire offers", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan offer id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return ids, nil
}

// InsertMatch сохраняет совпадение, если для пары запрос-предложение его ещё нет.
// Возвращает признак того, что запись была создана.
func (r *SQLiteRepository) InsertMatch(ctx context.Context, m model.Match) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO matches (id, request_id, offer_id, requester_hospital_id, provider_hospital_id,
			drug_name, similarity_score, distance_km, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (request_id, offer_id) DO NOTHING`,
		m.ID, m.RequestID, m.OfferID, m.RequesterHospitalID, m.ProviderHospitalID,
		m.DrugName, m.SimilarityScore, m.DistanceKm, string(m.Status), formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
	)
	if err != nil {
		return false, classifySQLite("insert match", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// GetMatch возвращает совпадение по идентификатору.
func (r *SQLiteRepository) GetMatch(ctx context.Context, id uuid.UUID) (*model.Match, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches m WHERE m.id = ?`, id)

	m, err := scanSQLiteMatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: match %s", ErrNotFound, id)
		}
		return nil, classifySQLite("get match", err)
	}
	return m, nil
}

// ListMatchesByHospital возвращает совпадения, в которых участвует больница, в порядке ранжирования:
// схожесть по убыванию, расстояние по возрастанию, затем более раннее предложение.
func (r *SQLiteRepository) ListMatchesByHospital(ctx context.Context, hospitalID int64) ([]model.Match, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+matchColumns+`
		 FROM matches m
		 JOIN drug_offers o ON o.id = m.offer_id
		 WHERE m.requester_hospital_id = ? OR m.provider_hospital_id = ?
		 ORDER BY m.similarity_score DESC, m.distance_km ASC, o.created_at ASC`,
		hospitalID, hospitalID,
	)
	if err != nil {
		return nil, classifySQLite("select matches", err)
	}
	defer rows.Close()

	var res []model.Match
	for rows.Next() {
		m, err := scanSQLiteMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		res = append(res, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func scanSQLiteMatch(s scanner) (*model.Match, error) {
	var (
		m                    model.Match
		status               string
		createdAt, updatedAt string
	)
	err := s.Scan(&m.ID, &m.RequestID, &m.OfferID, &m.RequesterHospitalID, &m.ProviderHospitalID,
		&m.DrugName, &m.SimilarityScore, &m.DistanceKm, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	m.Status = model.MatchStatus(status)
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMatchStatus переводит совпадение из статуса from в статус to.
func (r *SQLiteRepository) UpdateMatchStatus(ctx context.Context, id uuid.UUID, from, to model.MatchStatus, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE matches SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), formatTime(at), id, string(from),
	)
	if err != nil {
		return classifySQLite("update match", err)
	}
	return expectOneRow(res, fmt.Sprintf("match %s", id))
}

// DeclineMatchesForRequest отклоняет все незавершённые совпадения запроса.
func (r *SQLiteRepository) DeclineMatchesForRequest(ctx context.Context, requestID uuid.UUID, at time.Time) (int64, error) {
	return r.declineMatches(ctx, "request_id", requestID, at)
}

// DeclineMatchesForOffer отклоняет все незавершённые совпадения предложения.
func (r *SQLiteRepository) DeclineMatchesForOffer(ctx context.Context, offerID uuid.UUID, at time.Time) (int64, error) {
	return r.declineMatches(ctx, "offer_id", offerID, at)
}

func (r *SQLiteRepository) declineMatches(ctx context.Context, column string, id uuid.UUID, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE matches SET status = ?, updated_at = ?
		 WHERE `+column+` = ? AND status NOT IN (?, ?)`,
		string(model.MatchStatusDeclined), formatTime(at), id,
		string(model.MatchStatusCompleted), string(model.MatchStatusDeclined),
	)
	if err != nil {
		return 0, classifySQLite("decline matches", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// CreateMessage сохраняет сообщение переписки.
func (r *SQLiteRepository) CreateMessage(ctx context.Context, msg model.Message) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.MatchID, msg.SenderID, msg.ReceiverID, msg.Content, msg.Read, formatTime(msg.CreatedAt),
	)
	if err != nil {
		return classifySQLite("insert message", err)
	}
	return nil
}

// GetMessage возвращает сообщение по идентификатору.
func (r *SQLiteRepository) GetMessage(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)

	msg, err := scanSQLiteMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: message %s", ErrNotFound, id)
		}
		return nil, classifySQLite("get message", err)
	}
	return msg, nil
}

// ListMessages возвращает переписку по совпадению в хронологическом порядке.
func (r *SQLiteRepository) ListMessages(ctx context.Context, matchID uuid.UUID) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE match_id = ? ORDER BY created_at`,
		matchID,
	)
	if err != nil {
		return nil, classifySQLite("select messages", err)
	}
	defer rows.Close()

	var res []model.Message
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, *msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func scanSQLiteMessage(s scanner) (*model.Message, error) {
	var (
		msg       model.Message
		createdAt string
	)
	err := s.Scan(&msg.ID, &msg.MatchID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.Read, &createdAt)
	if err != nil {
		return nil, err
	}
	if msg.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkMessageRead отмечает сообщение прочитанным.
func (r *SQLiteRepository) MarkMessageRead(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return classifySQLite("mark message read", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: message %s", ErrNotFound, id)
	}
	return nil
}
