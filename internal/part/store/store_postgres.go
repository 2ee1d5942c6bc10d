package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"twinhub/internal/part"
	"twinhub/pkg/domain"
	"twinhub/pkg/platform/sentinel"
	"twinhub/pkg/platform/tx"

	"github.com/lib/pq"
)

// PostgresStore persists the part catalog in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed part store.
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

func (s *PostgresStore) CreateLegalEntity(ctx context.Context, e *part.LegalEntity) error {
	err := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO legal_entities (bpnl) VALUES ($1) RETURNING id
	`, e.BPNL.String()).Scan(&e.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("legal entity %s: %w", e.BPNL, sentinel.ErrConflict)
		}
		return fmt.Errorf("create legal entity: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLegalEntityByBPNL(ctx context.Context, bpnl domain.BPN) (part.LegalEntity, error) {
	var (
		e   part.LegalEntity
		raw string
	)
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, bpnl FROM legal_entities WHERE bpnl = $1
	`, bpnl.String()).Scan(&e.ID, &raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return part.LegalEntity{}, fmt.Errorf("legal entity %s: %w", bpnl, sentinel.ErrNotFound)
		}
		return part.LegalEntity{}, fmt.Errorf("get legal entity: %w", err)
	}
	if e.BPNL, err = domain.ParseBPN(raw); err != nil {
		return part.LegalEntity{}, fmt.Errorf("stored bpnl: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) CreateCatalogPart(ctx context.Context, p *part.CatalogPart) error {
	err := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO catalog_parts (legal_entity_id, manufacturer_part_id, name, category, bpns)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, p.LegalEntityID, p.ManufacturerPartID, p.Name, nullString(p.Category), nullString(p.SiteBPNS)).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("catalog part %s: %w", p.ManufacturerPartID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create catalog part: %w", err)
	}
	return nil
}

const catalogPartColumns = `id, legal_entity_id, manufacturer_part_id, name, category, bpns, twin_id`

func (s *PostgresStore) GetCatalogPart(ctx context.Context, legalEntityID int64, manufacturerPartID string) (part.CatalogPart, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+catalogPartColumns+` FROM catalog_parts
		WHERE legal_entity_id = $1 AND manufacturer_part_id = $2
	`, legalEntityID, manufacturerPartID)
	p, err := scanCatalogPart(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return part.CatalogPart{}, fmt.Errorf("catalog part %s: %w", manufacturerPartID, sentinel.ErrNotFound)
		}
		return part.CatalogPart{}, fmt.Errorf("get catalog part: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListCatalogParts(ctx context.Context, legalEntityID int64) ([]part.CatalogPart, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+catalogPartColumns+` FROM catalog_parts
		WHERE legal_entity_id = $1
		ORDER BY id
	`, legalEntityID)
	if err != nil {
		return nil, fmt.Errorf("list catalog parts: %w", err)
	}
	defer rows.Close()

	var out []part.CatalogPart
	for rows.Next() {
		p, err := scanCatalogPart(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan catalog part: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanCatalogPart(scan func(...any) error) (part.CatalogPart, error) {
	var (
		p        part.CatalogPart
		category sql.NullString
		bpns     sql.NullString
		twinID   sql.NullInt64
	)
	if err := scan(&p.ID, &p.LegalEntityID, &p.ManufacturerPartID, &p.Name, &category, &bpns, &twinID); err != nil {
		return part.CatalogPart{}, err
	}
	p.Category = category.String
	p.SiteBPNS = bpns.String
	p.TwinID = twinID.Int64
	return p, nil
}

func (s *PostgresStore) LinkTwin(ctx context.Context, catalogPartID, twinID int64) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE catalog_parts SET twin_id = $2
		WHERE id = $1 AND (twin_id IS NULL OR twin_id = $2)
	`, catalogPartID, twinID)
	if err != nil {
		return fmt.Errorf("link twin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := s.q(ctx).QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM catalog_parts WHERE id = $1)
		`, catalogPartID).Scan(&exists); err != nil {
			return fmt.Errorf("check catalog part: %w", err)
		}
		if !exists {
			return fmt.Errorf("catalog part %d: %w", catalogPartID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("catalog part %d already linked: %w", catalogPartID, sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) CreatePartner(ctx context.Context, p *part.BusinessPartner) error {
	err := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO business_partners (name, bpnl) VALUES ($1, $2) RETURNING id
	`, p.Name, p.BPNL.String()).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("partner %q: %w", p.Name, sentinel.ErrConflict)
		}
		return fmt.Errorf("create partner: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPartnerByName(ctx context.Context, name string) (part.BusinessPartner, error) {
	return s.getPartner(ctx, `name = $1`, name)
}

func (s *PostgresStore) GetPartnerByBPNL(ctx context.Context, bpnl domain.BPN) (part.BusinessPartner, error) {
	return s.getPartner(ctx, `bpnl = $1`, bpnl.String())
}

func (s *PostgresStore) getPartner(ctx context.Context, where string, arg any) (part.BusinessPartner, error) {
	var (
		p   part.BusinessPartner
		raw string
	)
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, name, bpnl FROM business_partners WHERE `+where,
		arg).Scan(&p.ID, &p.Name, &raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return part.BusinessPartner{}, fmt.Errorf("partner: %w", sentinel.ErrNotFound)
		}
		return part.BusinessPartner{}, fmt.Errorf("get partner: %w", err)
	}
	if p.BPNL, err = domain.ParseBPN(raw); err != nil {
		return part.BusinessPartner{}, fmt.Errorf("stored bpnl: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPartners(ctx context.Context) ([]part.BusinessPartner, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, name, bpnl FROM business_partners ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}
	defer rows.Close()

	var out []part.BusinessPartner
	for rows.Next() {
		var (
			p   part.BusinessPartner
			raw string
		)
		if err := rows.Scan(&p.ID, &p.Name, &raw); err != nil {
			return nil, fmt.Errorf("scan partner: %w", err)
		}
		if p.BPNL, err = domain.ParseBPN(raw); err != nil {
			return nil, fmt.Errorf("stored bpnl: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateMapping(ctx context.Context, m *part.CustomerMapping) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO partner_catalog_parts (catalog_part_id, business_partner_id, customer_part_id)
		VALUES ($1, $2, $3)
	`, m.CatalogPartID, m.BusinessPartnerID, m.CustomerPartID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("mapping (%d,%d): %w", m.CatalogPartID, m.BusinessPartnerID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create mapping: %w", err)
	}
	filled, err := s.GetMapping(ctx, m.CatalogPartID, m.BusinessPartnerID)
	if err != nil {
		return err
	}
	*m = filled
	return nil
}

const mappingQuery = `
	SELECT m.catalog_part_id, m.business_partner_id, m.customer_part_id, p.name, p.bpnl
	FROM partner_catalog_parts m
	JOIN business_partners p ON p.id = m.business_partner_id
`

func (s *PostgresStore) GetMapping(ctx context.Context, catalogPartID, businessPartnerID int64) (part.CustomerMapping, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		mappingQuery+` WHERE m.catalog_part_id = $1 AND m.business_partner_id = $2`,
		catalogPartID, businessPartnerID)
	m, err := scanMapping(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return part.CustomerMapping{}, fmt.Errorf("mapping (%d,%d): %w", catalogPartID, businessPartnerID, sentinel.ErrNotFound)
		}
		return part.CustomerMapping{}, fmt.Errorf("get mapping: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListMappingsByPart(ctx context.Context, catalogPartID int64) ([]part.CustomerMapping, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		mappingQuery+` WHERE m.catalog_part_id = $1 ORDER BY m.business_partner_id`,
		catalogPartID)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var out []part.CustomerMapping
	for rows.Next() {
		m, err := scanMapping(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMapping(scan func(...any) error) (part.CustomerMapping, error) {
	var (
		m   part.CustomerMapping
		raw string
	)
	if err := scan(&m.CatalogPartID, &m.BusinessPartnerID, &m.CustomerPartID, &m.PartnerName, &raw); err != nil {
		return part.CustomerMapping{}, err
	}
	var err error
	if m.PartnerBPN, err = domain.ParseBPN(raw); err != nil {
		return part.CustomerMapping{}, fmt.Errorf("stored bpnl: %w", err)
	}
	return m, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
