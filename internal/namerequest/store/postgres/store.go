// Package postgres persists the name request aggregate across the requests,
// names, applicants, comments, partner_names and payments tables. It is pure
// I/O: every rule about what may change lives in the service.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"namex/internal/namerequest/models"
	"namex/pkg/domain"
	"namex/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore implements the service store interface.
type PostgresStore struct {
	db dbtx
}

// New constructs a store on the connection pool.
func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx binds a store to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

const requestColumns = `
	id, nr_num, state_cd, previous_state_cd, entity_type_cd, request_action_cd, request_type_cd,
	consent_flag, consent_dt, expiration_date, furnished, checked_out_by, checked_out_dt,
	priority_cd, priority_date, submitted_date, last_update, has_been_reset, user_id, corp_num,
	additional_info, nature_business_info, trade_mark, xpro_jurisdiction, home_juris_num,
	previous_nr, previous_request_id
`

// Create inserts a new aggregate and assigns its id.
func (s *PostgresStore) Create(ctx context.Context, nr *models.NameRequest) error {
	if nr == nil {
		return fmt.Errorf("name request is required")
	}
	query := `
		INSERT INTO requests (nr_num, state_cd, submitted_date, last_update)
		VALUES ($1, $2, $3, $3)
		RETURNING id
	`
	submitted := nr.SubmittedDate
	if submitted.IsZero() {
		submitted = time.Now()
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, query, string(nr.NRNum), string(nr.StateCd), submitted).Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert name request: %w", err)
	}
	nr.ID = domain.RequestID(id)
	nr.SubmittedDate = submitted
	return s.Save(ctx, nr)
}

func (s *PostgresStore) GetByID(ctx context.Context, id domain.RequestID) (*models.NameRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, int64(id))
	return s.loadAggregate(ctx, row)
}

func (s *PostgresStore) GetByNR(ctx context.Context, nrNum domain.NRNumber) (*models.NameRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE nr_num = $1`, string(nrNum))
	return s.loadAggregate(ctx, row)
}

func (s *PostgresStore) FindInProgressForUser(ctx context.Context, userID domain.UserID) (*models.NameRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM requests
		WHERE user_id = $1 AND state_cd = $2
		ORDER BY last_update DESC
		LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, int64(userID), string(models.StateInProgress))
	return s.loadAggregate(ctx, row)
}

func (s *PostgresStore) loadAggregate(ctx context.Context, row *sql.Row) (*models.NameRequest, error) {
	nr, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	if nr.Names, err = s.listNames(ctx, nr.ID); err != nil {
		return nil, err
	}
	if nr.Applicant, err = s.getApplicant(ctx, nr.ID); err != nil {
		return nil, err
	}
	if nr.Comments, err = s.listComments(ctx, nr.ID); err != nil {
		return nil, err
	}
	if nr.PartnerNames, err = s.listPartnerNames(ctx, nr.ID); err != nil {
		return nil, err
	}
	return nr, nil
}

// Save writes the header and synchronizes every owned collection. Comments
// are append-only: only those without an id are inserted.
func (s *PostgresStore) Save(ctx context.Context, nr *models.NameRequest) error {
	if nr == nil {
		return fmt.Errorf("name request is required")
	}
	query := `
		UPDATE requests SET
			nr_num = $2, state_cd = $3, previous_state_cd = $4, entity_type_cd = $5,
			request_action_cd = $6, request_type_cd = $7, consent_flag = $8, consent_dt = $9,
			expiration_date = $10, furnished = $11, checked_out_by = $12, checked_out_dt = $13,
			priority_cd = $14, priority_date = $15, last_update = $16, has_been_reset = $17,
			user_id = $18, corp_num = $19, additional_info = $20, nature_business_info = $21,
			trade_mark = $22, xpro_jurisdiction = $23, home_juris_num = $24, previous_nr = $25,
			previous_request_id = $26
		WHERE id = $1
	`
	var previousState *string
	if nr.PreviousStateCd != nil {
		v := string(*nr.PreviousStateCd)
		previousState = &v
	}
	var previousID *int64
	if nr.PreviousRequestID != nil {
		v := int64(*nr.PreviousRequestID)
		previousID = &v
	}
	res, err := s.db.ExecContext(ctx, query,
		int64(nr.ID), string(nr.NRNum), string(nr.StateCd), previousState, nr.EntityTypeCd,
		nr.RequestActionCd, nr.RequestTypeCd, nr.ConsentFlag, nr.ConsentDate,
		nr.ExpirationDate, nr.Furnished, nr.CheckedOutBy, nr.CheckedOutDt,
		nr.PriorityCd, nr.PriorityDate, nr.LastUpdate, nr.HasBeenReset,
		int64(nr.UserID), nr.CorpNum, nr.AdditionalInfo, nr.NatureBusinessInfo,
		nr.TradeMark, nr.XproJurisdiction, nr.HomeJurisNum, nr.PreviousNr,
		previousID,
	)
	if err != nil {
		return fmt.Errorf("update name request: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}

	if err := s.syncNames(ctx, nr); err != nil {
		return err
	}
	if err := s.syncApplicant(ctx, nr); err != nil {
		return err
	}
	if err := s.insertComments(ctx, nr); err != nil {
		return err
	}
	return s.syncPartnerNames(ctx, nr)
}

func (s *PostgresStore) DeleteName(ctx context.Context, id domain.RequestID, choice int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM names WHERE request_id = $1 AND choice = $2`, int64(id), choice)
	if err != nil {
		return fmt.Errorf("delete name choice: %w", err)
	}
	return nil
}

// CompareAndSetCheckout is a single conditional update, so two callers racing
// for the same request cannot both win.
func (s *PostgresStore) CompareAndSetCheckout(ctx context.Context, id domain.RequestID, expected, token *string, at *time.Time) error {
	query := `
		UPDATE requests
		SET checked_out_by = $3, checked_out_dt = $4
		WHERE id = $1 AND checked_out_by IS NOT DISTINCT FROM $2
	`
	res, err := s.db.ExecContext(ctx, query, int64(id), expected, token, at)
	if err != nil {
		return fmt.Errorf("compare and set checkout: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("compare and set checkout: %w", err)
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM requests WHERE id = $1)`, int64(id)).Scan(&exists); err != nil {
		return fmt.Errorf("check name request: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

// AddPayment links a payment to a request and assigns its id.
func (s *PostgresStore) AddPayment(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (request_id, token, status_code, action, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		int64(p.RequestID), p.Token, string(p.StatusCode), string(p.Action), p.Amount,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPayments(ctx context.Context, id domain.RequestID) ([]*models.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, token, status_code, action, amount
		FROM payments WHERE request_id = $1 ORDER BY id`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var out []*models.Payment
	for rows.Next() {
		var (
			p         models.Payment
			requestID int64
			status    string
			action    string
		)
		if err := rows.Scan(&p.ID, &requestID, &p.Token, &status, &action, &p.Amount); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.RequestID = domain.RequestID(requestID)
		p.StatusCode = models.PaymentStatus(status)
		p.Action = models.PaymentAction(action)
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SavePayment(ctx context.Context, p *models.Payment) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payments SET status_code = $2, action = $3, amount = $4
		WHERE id = $1`, p.ID, string(p.StatusCode), string(p.Action), p.Amount)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) syncNames(ctx context.Context, nr *models.NameRequest) error {
	choices := make([]int64, 0, len(nr.Names))
	for _, n := range nr.Names {
		choices = append(choices, int64(n.Choice))
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM names WHERE request_id = $1 AND NOT (choice = ANY($2))`,
		int64(nr.ID), pq.Array(choices),
	)
	if err != nil {
		return fmt.Errorf("delete dropped names: %w", err)
	}

	query := `
		INSERT INTO names (
			request_id, choice, name, state, designation, decision_text, name_type_cd,
			conflict1, conflict2, conflict3, conflict1_num, conflict2_num, conflict3_num,
			consumption_date, corp_num, comment_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (request_id, choice) DO UPDATE SET
			name = EXCLUDED.name,
			state = EXCLUDED.state,
			designation = EXCLUDED.designation,
			decision_text = EXCLUDED.decision_text,
			name_type_cd = EXCLUDED.name_type_cd,
			conflict1 = EXCLUDED.conflict1,
			conflict2 = EXCLUDED.conflict2,
			conflict3 = EXCLUDED.conflict3,
			conflict1_num = EXCLUDED.conflict1_num,
			conflict2_num = EXCLUDED.conflict2_num,
			conflict3_num = EXCLUDED.conflict3_num,
			consumption_date = EXCLUDED.consumption_date,
			corp_num = EXCLUDED.corp_num,
			comment_id = EXCLUDED.comment_id
		RETURNING id
	`
	for _, n := range nr.Names {
		err := s.db.QueryRowContext(ctx, query,
			int64(nr.ID), n.Choice, n.Name, string(n.State), n.Designation, n.DecisionText, n.NameTypeCd,
			n.Conflict1, n.Conflict2, n.Conflict3, n.Conflict1Num, n.Conflict2Num, n.Conflict3Num,
			n.ConsumptionDate, n.CorpNum, n.CommentID,
		).Scan(&n.ID)
		if err != nil {
			return fmt.Errorf("upsert name choice %d: %w", n.Choice, err)
		}
	}
	return nil
}

func (s *PostgresStore) syncApplicant(ctx context.Context, nr *models.NameRequest) error {
	if nr.Applicant == nil {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM applicants WHERE request_id = $1`, int64(nr.ID)); err != nil {
			return fmt.Errorf("delete applicant: %w", err)
		}
		return nil
	}
	a := nr.Applicant
	query := `
		INSERT INTO applicants (
			request_id, last_name, first_name, middle_name, phone_number, fax_number, email_address,
			contact, client_first_name, client_last_name, decline_notification_ind,
			addr_line1, addr_line2, addr_line3, city, postal_cd, state_province_cd, country_type_cd
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (request_id) DO UPDATE SET
			last_name = EXCLUDED.last_name,
			first_name = EXCLUDED.first_name,
			middle_name = EXCLUDED.middle_name,
			phone_number = EXCLUDED.phone_number,
			fax_number = EXCLUDED.fax_number,
			email_address = EXCLUDED.email_address,
			contact = EXCLUDED.contact,
			client_first_name = EXCLUDED.client_first_name,
			client_last_name = EXCLUDED.client_last_name,
			decline_notification_ind = EXCLUDED.decline_notification_ind,
			addr_line1 = EXCLUDED.addr_line1,
			addr_line2 = EXCLUDED.addr_line2,
			addr_line3 = EXCLUDED.addr_line3,
			city = EXCLUDED.city,
			postal_cd = EXCLUDED.postal_cd,
			state_province_cd = EXCLUDED.state_province_cd,
			country_type_cd = EXCLUDED.country_type_cd
	`
	_, err := s.db.ExecContext(ctx, query,
		int64(nr.ID), a.LastName, a.FirstName, a.MiddleName, a.PhoneNumber, a.FaxNumber, a.EmailAddress,
		a.Contact, a.ClientFirstName, a.ClientLastName, a.DeclineNotificationInd,
		a.AddrLine1, a.AddrLine2, a.AddrLine3, a.City, a.PostalCd, a.StateProvinceCd, a.CountryTypeCd,
	)
	if err != nil {
		return fmt.Errorf("upsert applicant: %w", err)
	}
	return nil
}

func (s *PostgresStore) insertComments(ctx context.Context, nr *models.NameRequest) error {
	query := `
		INSERT INTO comments (request_id, comment, examiner_id, examiner, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	for _, c := range nr.Comments {
		if c.ID != 0 {
			continue
		}
		err := s.db.QueryRowContext(ctx, query,
			int64(nr.ID), c.Comment, int64(c.ExaminerID), c.Examiner, c.Timestamp,
		).Scan(&c.ID)
		if err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) syncPartnerNames(ctx context.Context, nr *models.NameRequest) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM partner_names WHERE request_id = $1`, int64(nr.ID)); err != nil {
		return fmt.Errorf("delete partner names: %w", err)
	}
	query := `
		INSERT INTO partner_names (request_id, jurisdiction_type_cd, name_type_cd, name_number, name_date, name)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, p := range nr.PartnerNames {
		_, err := s.db.ExecContext(ctx, query,
			int64(nr.ID), p.JurisdictionTypeCd, p.NameTypeCd, p.NameNumber, p.NameDate, p.Name,
		)
		if err != nil {
			return fmt.Errorf("insert partner name: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) listNames(ctx context.Context, id domain.RequestID) ([]*models.NameChoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, choice, name, state, designation, decision_text, name_type_cd,
			   conflict1, conflict2, conflict3, conflict1_num, conflict2_num, conflict3_num,
			   consumption_date, corp_num, comment_id
		FROM names WHERE request_id = $1 ORDER BY choice`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("query names: %w", err)
	}
	defer rows.Close()

	out := []*models.NameChoice{}
	for rows.Next() {
		var (
			n     models.NameChoice
			state string
		)
		err := rows.Scan(&n.ID, &n.Choice, &n.Name, &state, &n.Designation, &n.DecisionText, &n.NameTypeCd,
			&n.Conflict1, &n.Conflict2, &n.Conflict3, &n.Conflict1Num, &n.Conflict2Num, &n.Conflict3Num,
			&n.ConsumptionDate, &n.CorpNum, &n.CommentID)
		if err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		n.State = models.NameState(state)
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate names: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) getApplicant(ctx context.Context, id domain.RequestID) (*models.Applicant, error) {
	var a models.Applicant
	err := s.db.QueryRowContext(ctx, `
		SELECT last_name, first_name, middle_name, phone_number, fax_number, email_address,
			   contact, client_first_name, client_last_name, decline_notification_ind,
			   addr_line1, addr_line2, addr_line3, city, postal_cd, state_province_cd, country_type_cd
		FROM applicants WHERE request_id = $1`, int64(id)).Scan(
		&a.LastName, &a.FirstName, &a.MiddleName, &a.PhoneNumber, &a.FaxNumber, &a.EmailAddress,
		&a.Contact, &a.ClientFirstName, &a.ClientLastName, &a.DeclineNotificationInd,
		&a.AddrLine1, &a.AddrLine2, &a.AddrLine3, &a.City, &a.PostalCd, &a.StateProvinceCd, &a.CountryTypeCd,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get applicant: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) listComments(ctx context.Context, id domain.RequestID) ([]*models.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, comment, examiner_id, examiner, created_at
		FROM comments WHERE request_id = $1 ORDER BY id`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	out := []*models.Comment{}
	for rows.Next() {
		var (
			c          models.Comment
			examinerID int64
		)
		if err := rows.Scan(&c.ID, &c.Comment, &examinerID, &c.Examiner, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.ExaminerID = domain.UserID(examinerID)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) listPartnerNames(ctx context.Context, id domain.RequestID) ([]*models.PartnerName, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT jurisdiction_type_cd, name_type_cd, name_number, name_date, name
		FROM partner_names WHERE request_id = $1 ORDER BY id`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("query partner names: %w", err)
	}
	defer rows.Close()

	out := []*models.PartnerName{}
	for rows.Next() {
		var p models.PartnerName
		if err := rows.Scan(&p.JurisdictionTypeCd, &p.NameTypeCd, &p.NameNumber, &p.NameDate, &p.Name); err != nil {
			return nil, fmt.Errorf("scan partner name: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partner names: %w", err)
	}
	return out, nil
}

func scanRequest(row *sql.Row) (*models.NameRequest, error) {
	var (
		nr            models.NameRequest
		id            int64
		nrNum         string
		state         string
		previousState sql.NullString
		userID        int64
		previousID    sql.NullInt64
	)
	err := row.Scan(
		&id, &nrNum, &state, &previousState, &nr.EntityTypeCd, &nr.RequestActionCd, &nr.RequestTypeCd,
		&nr.ConsentFlag, &nr.ConsentDate, &nr.ExpirationDate, &nr.Furnished, &nr.CheckedOutBy, &nr.CheckedOutDt,
		&nr.PriorityCd, &nr.PriorityDate, &nr.SubmittedDate, &nr.LastUpdate, &nr.HasBeenReset, &userID, &nr.CorpNum,
		&nr.AdditionalInfo, &nr.NatureBusinessInfo, &nr.TradeMark, &nr.XproJurisdiction, &nr.HomeJurisNum,
		&nr.PreviousNr, &previousID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan name request: %w", err)
	}
	nr.ID = domain.RequestID(id)
	nr.NRNum = domain.NRNumber(nrNum)
	nr.StateCd = models.State(state)
	if previousState.Valid {
		s := models.State(previousState.String)
		nr.PreviousStateCd = &s
	}
	nr.UserID = domain.UserID(userID)
	if previousID.Valid {
		p := domain.RequestID(previousID.Int64)
		nr.PreviousRequestID = &p
	}
	return &nr, nil
}
