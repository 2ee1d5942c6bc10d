package postgres

import (
	"database/sql"
	"fmt"

	migrate "github.com/rubenv/sql-migrate"
)

// Migrate applies any unapplied schema migrations. Migrations are additive
// and ordered; the status column on aspect registrations is an integer so
// progress can be advanced with a single guarded UPDATE.
func Migrate(db *sql.DB) error {
	source := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "twinhub_1_core",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS legal_entities (
						id       BIGSERIAL PRIMARY KEY,
						bpnl     VARCHAR(16) NOT NULL UNIQUE
					)`,
					`CREATE TABLE IF NOT EXISTS business_partners (
						id       BIGSERIAL PRIMARY KEY,
						name     VARCHAR(128) NOT NULL UNIQUE,
						bpnl     VARCHAR(16) NOT NULL UNIQUE
					)`,
					`CREATE TABLE IF NOT EXISTS enablement_service_stacks (
						id                  BIGSERIAL PRIMARY KEY,
						name                VARCHAR(128) NOT NULL UNIQUE,
						legal_entity_id     BIGINT NOT NULL REFERENCES legal_entities(id),
						connection_settings JSONB
					)`,
					`CREATE TABLE IF NOT EXISTS twins (
						id                 BIGSERIAL PRIMARY KEY,
						global_id          UUID NOT NULL UNIQUE,
						aas_id             UUID NOT NULL UNIQUE,
						created_date       TIMESTAMP NOT NULL DEFAULT now(),
						modified_date      TIMESTAMP NOT NULL DEFAULT now(),
						additional_context VARCHAR(512)
					)`,
					`CREATE TABLE IF NOT EXISTS twin_registrations (
						twin_id                     BIGINT NOT NULL REFERENCES twins(id),
						enablement_service_stack_id BIGINT NOT NULL REFERENCES enablement_service_stacks(id),
						dtr_registered              BOOLEAN NOT NULL DEFAULT FALSE,
						PRIMARY KEY (twin_id, enablement_service_stack_id)
					)`,
					`CREATE TABLE IF NOT EXISTS twin_aspects (
						id          BIGSERIAL PRIMARY KEY,
						twin_id     BIGINT NOT NULL REFERENCES twins(id),
						submodel_id UUID NOT NULL UNIQUE,
						semantic_id VARCHAR(512) NOT NULL,
						UNIQUE (twin_id, semantic_id)
					)`,
					`CREATE TABLE IF NOT EXISTS twin_aspect_registrations (
						twin_aspect_id              BIGINT NOT NULL REFERENCES twin_aspects(id),
						enablement_service_stack_id BIGINT NOT NULL REFERENCES enablement_service_stacks(id),
						status                      SMALLINT NOT NULL DEFAULT 0,
						mode                        VARCHAR(16) NOT NULL DEFAULT 'SINGLE',
						created_date                TIMESTAMP NOT NULL DEFAULT now(),
						modified_date               TIMESTAMP NOT NULL DEFAULT now(),
						PRIMARY KEY (twin_aspect_id, enablement_service_stack_id)
					)`,
				},
				Down: []string{
					`DROP TABLE IF EXISTS twin_aspect_registrations`,
					`DROP TABLE IF EXISTS twin_aspects`,
					`DROP TABLE IF EXISTS twin_registrations`,
					`DROP TABLE IF EXISTS twins`,
					`DROP TABLE IF EXISTS enablement_service_stacks`,
					`DROP TABLE IF EXISTS business_partners`,
					`DROP TABLE IF EXISTS legal_entities`,
				},
			},
			{
				Id: "twinhub_2_parts",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS catalog_parts (
						id                   BIGSERIAL PRIMARY KEY,
						legal_entity_id      BIGINT NOT NULL REFERENCES legal_entities(id),
						manufacturer_part_id VARCHAR(128) NOT NULL,
						name                 VARCHAR(256) NOT NULL,
						category             VARCHAR(128),
						bpns                 VARCHAR(16),
						twin_id              BIGINT REFERENCES twins(id),
						UNIQUE (legal_entity_id, manufacturer_part_id)
					)`,
					`CREATE TABLE IF NOT EXISTS partner_catalog_parts (
						catalog_part_id      BIGINT NOT NULL REFERENCES catalog_parts(id),
						business_partner_id  BIGINT NOT NULL REFERENCES business_partners(id),
						customer_part_id     VARCHAR(128) NOT NULL,
						PRIMARY KEY (catalog_part_id, business_partner_id)
					)`,
					`CREATE TABLE IF NOT EXISTS data_exchange_agreements (
						id                  BIGSERIAL PRIMARY KEY,
						name                VARCHAR(128) NOT NULL,
						business_partner_id BIGINT NOT NULL REFERENCES business_partners(id),
						UNIQUE (business_partner_id, name)
					)`,
					`CREATE TABLE IF NOT EXISTS twin_exchanges (
						twin_id                    BIGINT NOT NULL REFERENCES twins(id),
						data_exchange_agreement_id BIGINT NOT NULL REFERENCES data_exchange_agreements(id),
						PRIMARY KEY (twin_id, data_exchange_agreement_id)
					)`,
				},
				Down: []string{
					`DROP TABLE IF EXISTS twin_exchanges`,
					`DROP TABLE IF EXISTS data_exchange_agreements`,
					`DROP TABLE IF EXISTS partner_catalog_parts`,
					`DROP TABLE IF EXISTS catalog_parts`,
				},
			},
		},
	}

	if _, err := migrate.Exec(db, "postgres", source, migrate.Up); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
