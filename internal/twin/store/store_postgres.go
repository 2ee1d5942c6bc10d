package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"twinhub/internal/twin"
	"twinhub/pkg/domain"
	"twinhub/pkg/platform/sentinel"
	"twinhub/pkg/platform/tx"

	"github.com/lib/pq"
)

// PostgresStore persists twin metadata in PostgreSQL. Methods run against
// the transaction carried in ctx when one is present, so orchestrator
// stages can group writes.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed twin store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (s *PostgresStore) CreateTwin(ctx context.Context, t *twin.Twin) error {
	err := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO twins (global_id, aas_id, created_date, modified_date, additional_context)
		VALUES ($1, $2, now(), now(), $3)
		RETURNING id, created_date, modified_date
	`, t.GlobalID.String(), t.ShellID.String(), nullString(t.AdditionalContext)).
		Scan(&t.ID, &t.CreatedAt, &t.ModifiedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("twin %s: %w", t.GlobalID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create twin: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTwinByID(ctx context.Context, id int64) (twin.Twin, error) {
	return s.scanTwin(s.q(ctx).QueryRowContext(ctx, `
		SELECT id, global_id, aas_id, created_date, modified_date, additional_context
		FROM twins WHERE id = $1
	`, id))
}

func (s *PostgresStore) GetTwinByGlobalID(ctx context.Context, globalID domain.GlobalID) (twin.Twin, error) {
	return s.scanTwin(s.q(ctx).QueryRowContext(ctx, `
		SELECT id, global_id, aas_id, created_date, modified_date, additional_context
		FROM twins WHERE global_id = $1
	`, globalID.String()))
}

func (s *PostgresStore) scanTwin(row *sql.Row) (twin.Twin, error) {
	var (
		t          twin.Twin
		globalID   string
		shellID    string
		additional sql.NullString
	)
	err := row.Scan(&t.ID, &globalID, &shellID, &t.CreatedAt, &t.ModifiedAt, &additional)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return twin.Twin{}, fmt.Errorf("twin: %w", sentinel.ErrNotFound)
		}
		return twin.Twin{}, fmt.Errorf("get twin: %w", err)
	}
	if t.GlobalID, err = domain.ParseGlobalID(globalID); err != nil {
		return twin.Twin{}, fmt.Errorf("stored global id: %w", err)
	}
	if t.ShellID, err = domain.ParseShellID(shellID); err != nil {
		return twin.Twin{}, fmt.Errorf("stored shell id: %w", err)
	}
	t.AdditionalContext = additional.String
	return t, nil
}

func (s *PostgresStore) GetStackByName(ctx context.Context, name string) (twin.EnablementServiceStack, error) {
	var st twin.EnablementServiceStack
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, name, legal_entity_id, connection_settings
		FROM enablement_service_stacks WHERE name = $1
	`, name).Scan(&st.ID, &st.Name, &st.LegalEntityID, &st.ConnectionSettings)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return twin.EnablementServiceStack{}, fmt.Errorf("stack %q: %w", name, sentinel.ErrNotFound)
		}
		return twin.EnablementServiceStack{}, fmt.Errorf("get stack: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) CreateStack(ctx context.Context, st *twin.EnablementServiceStack) error {
	err := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO enablement_service_stacks (name, legal_entity_id, connection_settings)
		VALUES ($1, $2, $3)
		RETURNING id
	`, st.Name, st.LegalEntityID, st.ConnectionSettings).Scan(&st.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("stack %q: %w", st.Name, sentinel.ErrConflict)
		}
		return fmt.Errorf("create stack: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindStacksByLegalEntity(ctx context.Context, legalEntityID int64) ([]twin.EnablementServiceStack, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, name, legal_entity_id, connection_settings
		FROM enablement_service_stacks WHERE legal_entity_id = $1
		ORDER BY id
	`, legalEntityID)
	if err != nil {
		return nil, fmt.Errorf("find stacks: %w", err)
	}
	defer rows.Close()

	var out []twin.EnablementServiceStack
	for rows.Next() {
		var st twin.EnablementServiceStack
		if err := rows.Scan(&st.ID, &st.Name, &st.LegalEntityID, &st.ConnectionSettings); err != nil {
			return nil, fmt.Errorf("scan stack: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PostgresStore) EnsureTwinRegistration(ctx context.Context, twinID, stackID int64) (twin.TwinRegistration, error) {
	// ON CONFLICT DO NOTHING plus a follow-up read makes a racing create
	// converge on the single existing row.
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO twin_registrations (twin_id, enablement_service_stack_id, dtr_registered)
		VALUES ($1, $2, FALSE)
		ON CONFLICT (twin_id, enablement_service_stack_id) DO NOTHING
	`, twinID, stackID)
	if err != nil {
		return twin.TwinRegistration{}, fmt.Errorf("ensure twin registration: %w", err)
	}
	var reg twin.TwinRegistration
	err = s.q(ctx).QueryRowContext(ctx, `
		SELECT twin_id, enablement_service_stack_id, dtr_registered
		FROM twin_registrations
		WHERE twin_id = $1 AND enablement_service_stack_id = $2
	`, twinID, stackID).Scan(&reg.TwinID, &reg.StackID, &reg.Registered)
	if err != nil {
		return twin.TwinRegistration{}, fmt.Errorf("read twin registration: %w", err)
	}
	return reg, nil
}

func (s *PostgresStore) MarkTwinRegistered(ctx context.Context, twinID, stackID int64) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE twin_registrations SET dtr_registered = TRUE
		WHERE twin_id = $1 AND enablement_service_stack_id = $2
	`, twinID, stackID)
	if err != nil {
		return fmt.Errorf("mark twin registered: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("twin registration (%d,%d): %w", twinID, stackID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) CreateAspect(ctx context.Context, a *twin.TwinAspect) error {
	err := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO twin_aspects (twin_id, submodel_id, semantic_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`, a.TwinID, a.SubmodelID.String(), a.SemanticID).Scan(&a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("aspect %s on twin %d: %w", a.SemanticID, a.TwinID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create aspect: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAspect(ctx context.Context, twinID int64, semanticID string) (twin.TwinAspect, error) {
	return s.scanAspect(s.q(ctx).QueryRowContext(ctx, `
		SELECT id, twin_id, submodel_id, semantic_id
		FROM twin_aspects WHERE twin_id = $1 AND semantic_id = $2
	`, twinID, semanticID))
}

func (s *PostgresStore) scanAspect(row *sql.Row) (twin.TwinAspect, error) {
	var (
		a          twin.TwinAspect
		submodelID string
	)
	err := row.Scan(&a.ID, &a.TwinID, &submodelID, &a.SemanticID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return twin.TwinAspect{}, fmt.Errorf("aspect: %w", sentinel.ErrNotFound)
		}
		return twin.TwinAspect{}, fmt.Errorf("get aspect: %w", err)
	}
	if a.SubmodelID, err = domain.ParseSubmodelID(submodelID); err != nil {
		return twin.TwinAspect{}, fmt.Errorf("stored submodel id: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListAspectsByTwin(ctx context.Context, twinID int64) ([]twin.TwinAspect, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, twin_id, submodel_id, semantic_id
		FROM twin_aspects WHERE twin_id = $1
		ORDER BY id
	`, twinID)
	if err != nil {
		return nil, fmt.Errorf("list aspects: %w", err)
	}
	defer rows.Close()

	var out []twin.TwinAspect
	for rows.Next() {
		var (
			a          twin.TwinAspect
			submodelID string
		)
		if err := rows.Scan(&a.ID, &a.TwinID, &submodelID, &a.SemanticID); err != nil {
			return nil, fmt.Errorf("scan aspect: %w", err)
		}
		if a.SubmodelID, err = domain.ParseSubmodelID(submodelID); err != nil {
			return nil, fmt.Errorf("stored submodel id: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) EnsureAspectRegistration(ctx context.Context, aspectID, stackID int64, mode twin.RegistrationMode) (twin.TwinAspectRegistration, error) {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO twin_aspect_registrations
			(twin_aspect_id, enablement_service_stack_id, status, mode, created_date, modified_date)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (twin_aspect_id, enablement_service_stack_id) DO NOTHING
	`, aspectID, stackID, int(twin.StatusPlanned), mode.String())
	if err != nil {
		return twin.TwinAspectRegistration{}, fmt.Errorf("ensure aspect registration: %w", err)
	}
	return s.GetAspectRegistration(ctx, aspectID, stackID)
}

func (s *PostgresStore) GetAspectRegistration(ctx context.Context, aspectID, stackID int64) (twin.TwinAspectRegistration, error) {
	var (
		reg    twin.TwinAspectRegistration
		status int
		mode   string
	)
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT twin_aspect_id, enablement_service_stack_id, status, mode, created_date, modified_date
		FROM twin_aspect_registrations
		WHERE twin_aspect_id = $1 AND enablement_service_stack_id = $2
	`, aspectID, stackID).Scan(&reg.TwinAspectID, &reg.StackID, &status, &mode, &reg.CreatedAt, &reg.ModifiedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return twin.TwinAspectRegistration{}, fmt.Errorf("aspect registration (%d,%d): %w", aspectID, stackID, sentinel.ErrNotFound)
		}
		return twin.TwinAspectRegistration{}, fmt.Errorf("get aspect registration: %w", err)
	}
	reg.Status = twin.RegistrationStatus(status)
	if reg.Mode, err = twin.ParseRegistrationMode(mode); err != nil {
		return twin.TwinAspectRegistration{}, fmt.Errorf("get aspect registration: %w", err)
	}
	return reg, nil
}

// AdvanceAspectStatus raises the stored status with a guarded UPDATE so a
// concurrent writer that already moved past target leaves the row alone.
func (s *PostgresStore) AdvanceAspectStatus(ctx context.Context, aspectID, stackID int64, target twin.RegistrationStatus) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE twin_aspect_registrations
		SET status = $3, modified_date = now()
		WHERE twin_aspect_id = $1 AND enablement_service_stack_id = $2 AND status < $3
	`, aspectID, stackID, int(target))
	if err != nil {
		return fmt.Errorf("advance aspect status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either already at or past target, or the row is missing. Only the
		// latter is an error.
		var exists bool
		err := s.q(ctx).QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM twin_aspect_registrations
				WHERE twin_aspect_id = $1 AND enablement_service_stack_id = $2
			)
		`, aspectID, stackID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check aspect registration: %w", err)
		}
		if !exists {
			return fmt.Errorf("aspect registration (%d,%d): %w", aspectID, stackID, sentinel.ErrNotFound)
		}
	}
	return nil
}

func (s *PostgresStore) CreateAgreement(ctx context.Context, a *twin.DataExchangeAgreement) error {
	err := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO data_exchange_agreements (name, business_partner_id)
		VALUES ($1, $2)
		RETURNING id
	`, a.Name, a.BusinessPartnerID).Scan(&a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("agreement %q for partner %d: %w", a.Name, a.BusinessPartnerID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create agreement: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAgreementsByPartner(ctx context.Context, businessPartnerID int64) ([]twin.DataExchangeAgreement, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT a.id, a.name, a.business_partner_id, p.bpnl
		FROM data_exchange_agreements a
		JOIN business_partners p ON p.id = a.business_partner_id
		WHERE a.business_partner_id = $1
		ORDER BY a.id
	`, businessPartnerID)
	if err != nil {
		return nil, fmt.Errorf("list agreements: %w", err)
	}
	defer rows.Close()

	var out []twin.DataExchangeAgreement
	for rows.Next() {
		var (
			a   twin.DataExchangeAgreement
			bpn string
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.BusinessPartnerID, &bpn); err != nil {
			return nil, fmt.Errorf("scan agreement: %w", err)
		}
		if a.PartnerBPN, err = domain.ParseBPN(bpn); err != nil {
			return nil, fmt.Errorf("stored partner bpn: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) EnsureTwinExchange(ctx context.Context, twinID, agreementID int64) (bool, error) {
	res, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO twin_exchanges (twin_id, data_exchange_agreement_id)
		VALUES ($1, $2)
		ON CONFLICT (twin_id, data_exchange_agreement_id) DO NOTHING
	`, twinID, agreementID)
	if err != nil {
		return false, fmt.Errorf("ensure twin exchange: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ensure twin exchange: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) TwinSharedWith(ctx context.Context, globalID domain.GlobalID, partner domain.BPN) (bool, error) {
	var shared bool
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM twin_exchanges e
			JOIN twins t ON t.id = e.twin_id
			JOIN data_exchange_agreements a ON a.id = e.data_exchange_agreement_id
			JOIN business_partners p ON p.id = a.business_partner_id
			WHERE t.global_id = $1 AND p.bpnl = $2
		)
	`, globalID.String(), string(partner)).Scan(&shared)
	if err != nil {
		return false, fmt.Errorf("check twin shared: %w", err)
	}
	return shared, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
