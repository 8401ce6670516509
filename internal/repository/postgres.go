// Package repository содержит реализации хранилища биржи медикаментов в PostgreSQL и SQLite.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/model"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

const (
	hospitalColumns = `id, user_id, name, license_number, address_line1, address_line2, city, state, zip_code,
		latitude, longitude, rep_name, rep_title, rep_email, rep_phone, created_at`
	requestColumns = `id, hospital_id, drugs, city, state, zip_code, latitude, longitude,
		max_distance_km, status, created_at, updated_at`
	offerColumns = `id, hospital_id, drugs, city, state, zip_code, latitude, longitude,
		max_distance_km, expiry_date, status, created_at, updated_at`
	matchColumns = `m.id, m.request_id, m.offer_id, m.requester_hospital_id, m.provider_hospital_id,
		m.drug_name, m.similarity_score, m.distance_km, m.status, m.created_at, m.updated_at`
	messageColumns = `id, match_id, sender_hospital_id, receiver_hospital_id, content, read, created_at`
)

type scanner interface {
	Scan(dest ...any) error
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping database: %v", ErrStorageUnavailable, err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations/postgres"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 500 * time.Millisecond}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// Ретраим только конфликты сериализации и взаимоблокировки.
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// classify переводит ошибки соединения в ErrStorageUnavailable.
func classify(op string, err error) error {
	if isConnectionError(err) {
		return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя. Уникальность почты проверяется индексом по lower(email).
func (r *PostgresRepository) CreateUser(ctx context.Context, email string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, created_at) VALUES ($1, $2, $3) RETURNING id`,
		email, passwordHash, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
		}
		return 0, classify("create user", err)
	}
	return id, nil
}

// GetUserByEmail возвращает пользователя по почте без учёта регистра.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE lower(email) = lower($1)`,
		email,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, classify("get user", err)
	}

	return &u, nil
}

// CreateHospital сохраняет профиль больницы. У пользователя может быть не больше одного профиля.
func (r *PostgresRepository) CreateHospital(ctx context.Context, h model.Hospital) (int64, error) {
	lat, lng := coordinateArgs(h.Address.Coordinates)

	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO hospitals (user_id, name, license_number, address_line1, address_line2, city, state, zip_code,
			latitude, longitude, rep_name, rep_title, rep_email, rep_phone, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id`,
		h.UserID, h.Name, h.LicenseNumber, h.Address.Line1, h.Address.Line2, h.Address.City, h.Address.State,
		h.Address.ZipCode, lat, lng, h.Representative.Name, h.Representative.Title, h.Representative.Email,
		h.Representative.Phone, h.CreatedAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return 0, fmt.Errorf("%w: user %d", ErrUserAlreadyHasHospital, h.UserID)
			case pgerrcode.ForeignKeyViolation:
				return 0, fmt.Errorf("%w: user %d", ErrUserNotFound, h.UserID)
			}
		}
		return 0, classify("create hospital", err)
	}
	return id, nil
}

// GetHospitalByUserID возвращает профиль больницы пользователя.
func (r *PostgresRepository) GetHospitalByUserID(ctx context.Context, userID int64) (*model.Hospital, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+hospitalColumns+` FROM hospitals WHERE user_id = $1`, userID)

	h, err := scanPgHospital(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHospitalNotFound
		}
		return nil, classify("get hospital", err)
	}
	return h, nil
}

func scanPgHospital(s scanner) (*model.Hospital, error) {
	var (
		h        model.Hospital
		lat, lng *float64
	)
	err := s.Scan(&h.ID, &h.UserID, &h.Name, &h.LicenseNumber, &h.Address.Line1, &h.Address.Line2,
		&h.Address.City, &h.Address.State, &h.Address.ZipCode, &lat, &lng, &h.Representative.Name,
		&h.Representative.Title, &h.Representative.Email, &h.Representative.Phone, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	h.Address.Coordinates = coordinatesFrom(lat, lng)
	return &h, nil
}

// CreateRequest сохраняет запрос на медикаменты.
func (r *PostgresRepository) CreateRequest(ctx context.Context, req model.DrugRequest) error {
	lat, lng := coordinateArgs(req.Location.Coordinates)

	_, err := r.pool.Exec(ctx,
		`INSERT INTO drug_requests (`+requestColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		req.ID, req.HospitalID, req.Drugs, req.Location.City, req.Location.State, req.Location.ZipCode,
		lat, lng, req.MaxDistanceKm, string(req.Status), req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return classify("insert request", err)
	}
	return nil
}

// GetRequest возвращает запрос по идентификатору.
func (r *PostgresRepository) GetRequest(ctx context.Context, id uuid.UUID) (*model.DrugRequest, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM drug_requests WHERE id = $1`, id)

	req, err := scanPgRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: request %s", ErrNotFound, id)
		}
		return nil, classify("get request", err)
	}
	return req, nil
}

// ListRequestsByHospital возвращает запросы больницы, новые первыми.
func (r *PostgresRepository) ListRequestsByHospital(ctx context.Context, hospitalID int64) ([]model.DrugRequest, error) {
	return r.queryRequests(ctx,
		`SELECT `+requestColumns+` FROM drug_requests WHERE hospital_id = $1 ORDER BY created_at DESC`,
		hospitalID,
	)
}

// ListActiveRequests возвращает все запросы в статусе pending.
func (r *PostgresRepository) ListActiveRequests(ctx context.Context) ([]model.DrugRequest, error) {
	return r.queryRequests(ctx,
		`SELECT `+requestColumns+` FROM drug_requests WHERE status = $1 ORDER BY created_at`,
		string(model.RequestStatusPending),
	)
}

func (r *PostgresRepository) queryRequests(ctx context.Context, query string, args ...any) ([]model.DrugRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("select requests", err)
	}
	defer rows.Close()

	var res []model.DrugRequest
	for rows.Next() {
		req, err := scanPgRequest(rows)
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

func scanPgRequest(s scanner) (*model.DrugRequest, error) {
	var (
		req      model.DrugRequest
		status   string
		lat, lng *float64
	)
	err := s.Scan(&req.ID, &req.HospitalID, &req.Drugs, &req.Location.City, &req.Location.State,
		&req.Location.ZipCode, &lat, &lng, &req.MaxDistanceKm, &status, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	req.Status = model.RequestStatus(status)
	req.Location.Coordinates = coordinatesFrom(lat, lng)
	return &req, nil
}

// UpdateRequestStatus переводит запрос из статуса from в статус to.
func (r *PostgresRepository) UpdateRequestStatus(ctx context.Context, id uuid.UUID, from, to model.RequestStatus, at time.Time) error {
	return r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE drug_requests SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
			id, string(from), string(to), at,
		)
		if err != nil {
			return fmt.Errorf("update request: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: request %s", ErrStatusChanged, id)
		}
		return nil
	})
}

// CreateOffer сохраняет предложение медикаментов.
func (r *PostgresRepository) CreateOffer(ctx context.Context, o model.DrugOffer) error {
	lat, lng := coordinateArgs(o.Location.Coordinates)

	_, err := r.pool.Exec(ctx,
		`INSERT INTO drug_offers (`+offerColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, o.HospitalID, o.Drugs, o.Location.City, o.Location.State, o.Location.ZipCode,
		lat, lng, o.MaxDistanceKm, o.ExpiryDate, string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return classify("insert offer", err)
	}
	return nil
}

// GetOffer возвращает предложение по идентификатору.
func (r *PostgresRepository) GetOffer(ctx context.Context, id uuid.UUID) (*model.DrugOffer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+offerColumns+` FROM drug_offers WHERE id = $1`, id)

	o, err := scanPgOffer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: offer %s", ErrNotFound, id)
		}
		return nil, classify("get offer", err)
	}
	return o, nil
}

// ListOffersByHospital возвращает предложения больницы, новые первыми.
func (r *PostgresRepository) ListOffersByHospital(ctx context.Context, hospitalID int64) ([]model.DrugOffer, error) {
	return r.queryOffers(ctx,
		`SELECT `+offerColumns+` FROM drug_offers WHERE hospital_id = $1 ORDER BY created_at DESC`,
		hospitalID,
	)
}

// ListAvailableOffers возвращает доступные предложения с неистёкшим сроком на момент now.
func (r *PostgresRepository) ListAvailableOffers(ctx context.Context, now time.Time) ([]model.DrugOffer, error) {
	return r.queryOffers(ctx,
		`SELECT `+offerColumns+` FROM drug_offers
		 WHERE status = $1 AND (expiry_date IS NULL OR expiry_date >= $2)
		 ORDER BY created_at`,
		string(model.OfferStatusAvailable), model.ExpiryCutoff(now),
	)
}

func (r *PostgresRepository) queryOffers(ctx context.Context, query string, args ...any) ([]model.DrugOffer, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("select offers", err)
	}
	defer rows.Close()

	var res []model.DrugOffer
	for rows.Next() {
		o, err := scanPgOffer(rows)
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

func scanPgOffer(s scanner) (*model.DrugOffer, error) {
	var (
		o        model.DrugOffer
		status   string
		lat, lng *float64
	)
	err := s.Scan(&o.ID, &o.HospitalID, &o.Drugs, &o.Location.City, &o.Location.State, &o.Location.ZipCode,
		&lat, &lng, &o.MaxDistanceKm, &o.ExpiryDate, &status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = model.OfferStatus(status)
	o.Location.Coordinates = coordinatesFrom(lat, lng)
	return &o, nil
}

// UpdateOfferStatus переводит предложение из статуса from в статус to.
func (r *PostgresRepository) UpdateOfferStatus(ctx context.Context, id uuid.UUID, from, to model.OfferStatus, at time.Time) error {
	return r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE drug_offers SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
			id, string(from), string(to), at,
		)
		if err != nil {
			return fmt.Errorf("update offer: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: offer %s", ErrStatusChanged, id)
		}
		return nil
	})
}

// ExpireOffers помечает просроченными предложения, дата годности которых прошла к моменту now, и возвращает их идентификаторы.
func (r *PostgresRepository) ExpireOffers(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`UPDATE drug_offers SET status = $1, updated_at = $2
		 WHERE expiry_date IS NOT NULL AND expiry_date < $3 AND status IN ($4, $5)
		 RETURNING id`,
		string(model.OfferStatusExpired), now, model.ExpiryCutoff(now),
		string(model.OfferStatusAvailable), string(model.OfferStatusReserved),
	)
	if err != nil {
		return nil, classify("expire offers", err)
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
func (r *PostgresRepository) InsertMatch(ctx context.Context, m model.Match) (bool, error) {
	var inserted bool
	err := r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`INSERT INTO matches (id, request_id, offer_id, requester_hospital_id, provider_hospital_id,
				drug_name, similarity_score, distance_km, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (request_id, offer_id) DO NOTHING`,
			m.ID, m.RequestID, m.OfferID, m.RequesterHospitalID, m.ProviderHospitalID,
			m.DrugName, m.SimilarityScore, m.DistanceKm, string(m.Status), m.CreatedAt, m.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert match: %w", err)
		}
		inserted = tag.RowsAffected() == 1
		return nil
	})
	return inserted, err
}

// GetMatch возвращает совпадение по идентификатору.
func (r *PostgresRepository) GetMatch(ctx context.Context, id uuid.UUID) (*model.Match, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches m WHERE m.id = $1`, id)

	m, err := scanPgMatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: match %s", ErrNotFound, id)
		}
		return nil, classify("get match", err)
	}
	return m, nil
}

// ListMatchesByHospital возвращает совпадения, в которых участвует больница, в порядке ранжирования:
// схожесть по убыванию, расстояние по возрастанию, затем более раннее предложение.
func (r *PostgresRepository) ListMatchesByHospital(ctx context.Context, hospitalID int64) ([]model.Match, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+matchColumns+`
		 FROM matches m
		 JOIN drug_offers o ON o.id = m.offer_id
		 WHERE m.requester_hospital_id = $1 OR m.provider_hospital_id = $1
		 ORDER BY m.similarity_score DESC, m.distance_km ASC, o.created_at ASC`,
		hospitalID,
	)
	if err != nil {
		return nil, classify("select matches", err)
	}
	defer rows.Close()

	var res []model.Match
	for rows.Next() {
		m, err := scanPgMatch(rows)
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

func scanPgMatch(s scanner) (*model.Match, error) {
	var (
		m      model.Match
		status string
	)
	err := s.Scan(&m.ID, &m.RequestID, &m.OfferID, &m.RequesterHospitalID, &m.ProviderHospitalID,
		&m.DrugName, &m.SimilarityScore, &m.DistanceKm, &status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Status = model.MatchStatus(status)
	return &m, nil
}

// UpdateMatchStatus переводит совпадение из статуса from в статус to.
func (r *PostgresRepository) UpdateMatchStatus(ctx context.Context, id uuid.UUID, from, to model.MatchStatus, at time.Time) error {
	return r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE matches SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
			id, string(from), string(to), at,
		)
		if err != nil {
			return fmt.Errorf("update match: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: match %s", ErrStatusChanged, id)
		}
		return nil
	})
}

// DeclineMatchesForRequest отклоняет все незавершённые совпадения запроса.
func (r *PostgresRepository) DeclineMatchesForRequest(ctx context.Context, requestID uuid.UUID, at time.Time) (int64, error) {
	return r.declineMatches(ctx, "request_id", requestID, at)
}

// DeclineMatchesForOffer отклоняет все незавершённые совпадения предложения.
func (r *PostgresRepository) DeclineMatchesForOffer(ctx context.Context, offerID uuid.UUID, at time.Time) (int64, error) {
	return r.declineMatches(ctx, "offer_id", offerID, at)
}

func (r *PostgresRepository) declineMatches(ctx context.Context, column string, id uuid.UUID, at time.Time) (int64, error) {
	var affected int64
	err := r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE matches SET status = $2, updated_at = $3
			 WHERE `+column+` = $1 AND status NOT IN ($4, $2)`,
			id, string(model.MatchStatusDeclined), at, string(model.MatchStatusCompleted),
		)
		if err != nil {
			return fmt.Errorf("decline matches: %w", err)
		}
		affected = tag.RowsAffected()
		return nil
	})
	return affected, err
}

// CreateMessage сохраняет сообщение переписки.
func (r *PostgresRepository) CreateMessage(ctx context.Context, msg model.Message) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO messages (`+messageColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.MatchID, msg.SenderID, msg.ReceiverID, msg.Content, msg.Read, msg.CreatedAt,
	)
	if err != nil {
		return classify("insert message", err)
	}
	return nil
}

// GetMessage возвращает сообщение по идентификатору.
func (r *PostgresRepository) GetMessage(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)

	var msg model.Message
	err := row.Scan(&msg.ID, &msg.MatchID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.Read, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: message %s", ErrNotFound, id)
		}
		return nil, classify("get message", err)
	}
	return &msg, nil
}

// ListMessages возвращает переписку по совпадению в хронологическом порядке.
func (r *PostgresRepository) ListMessages(ctx context.Context, matchID uuid.UUID) ([]model.Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE match_id = $1 ORDER BY created_at`,
		matchID,
	)
	if err != nil {
		return nil, classify("select messages", err)
	}
	defer rows.Close()

	var res []model.Message
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(&msg.ID, &msg.MatchID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.Read, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkMessageRead отмечает сообщение прочитанным.
func (r *PostgresRepository) MarkMessageRead(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE messages SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return classify("mark message read", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: message %s", ErrNotFound, id)
	}
	return nil
}
