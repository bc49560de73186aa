package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// Store names used as keys in schema_versions. Each entity store is
// versioned independently so a bump in one never touches the others.
const (
	storeSettings   = "settings"
	storeClients    = "clients"
	storeOnboarding = "onboarding_cards"
	storeTeam       = "team_members"
	storeFinancial  = "financial_records"
)

// storeOrder is the order in which stores are migrated on open.
var storeOrder = []string{
	storeSettings, storeClients, storeOnboarding, storeTeam, storeFinancial,
}

// migrations lists the schema history of every store. Versions are
// sequential per store starting from 1. Migrations are additive only
// (new tables, columns with defaults, indexes); existing columns are never
// dropped or retyped.
var migrations = map[string][]migration{
	storeSettings: {
		{
			version: 1,
			sql: `
CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`,
		},
	},
	storeClients: {
		{
			version: 1,
			sql: `
CREATE TABLE IF NOT EXISTS clients (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	website            TEXT NOT NULL DEFAULT '',
	segment            TEXT NOT NULL DEFAULT '',
	owner              TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT 'active',
	monthly_budget     REAL NOT NULL DEFAULT 0,
	budget_spent_month REAL NOT NULL DEFAULT 0,
	goal_targets       TEXT NOT NULL DEFAULT 'null',
	latest_metrics     TEXT NOT NULL DEFAULT 'null',
	contacts           TEXT NOT NULL DEFAULT 'null',
	access             TEXT NOT NULL DEFAULT 'null',
	onboarding         TEXT NOT NULL DEFAULT 'null',
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_clients_created_at ON clients(created_at);
`,
		},
		{
			version: 2,
			sql: `
CREATE INDEX IF NOT EXISTS idx_clients_status ON clients(status);
CREATE INDEX IF NOT EXISTS idx_clients_owner ON clients(owner);
`,
		},
	},
	storeOnboarding: {
		{
			version: 1,
			sql: `
CREATE TABLE IF NOT EXISTS onboarding_cards (
	id          TEXT PRIMARY KEY,
	client_id   TEXT NOT NULL,
	stage       TEXT NOT NULL,
	title       TEXT NOT NULL,
	responsavel TEXT NOT NULL DEFAULT '',
	vencimento  DATETIME,
	checklist   TEXT NOT NULL DEFAULT '[]',
	notas       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_onboarding_cards_client_id ON onboarding_cards(client_id);
`,
		},
		{
			version: 2,
			sql: `
ALTER TABLE onboarding_cards ADD COLUMN archived INTEGER NOT NULL DEFAULT 0;

CREATE INDEX IF NOT EXISTS idx_onboarding_cards_stage ON onboarding_cards(stage);
`,
		},
	},
	storeTeam: {
		{
			version: 1,
			sql: `
CREATE TABLE IF NOT EXISTS team_members (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL DEFAULT '',
	active     INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_team_members_created_at ON team_members(created_at);
`,
		},
	},
	storeFinancial: {
		{
			version: 1,
			sql: `
CREATE TABLE IF NOT EXISTS financial_records (
	id          TEXT PRIMARY KEY,
	client_id   TEXT,
	kind        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	amount      REAL NOT NULL DEFAULT 0,
	month       TEXT NOT NULL DEFAULT '',
	due_date    DATETIME,
	paid        INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_financial_records_month ON financial_records(month);
CREATE INDEX IF NOT EXISTS idx_financial_records_client_id ON financial_records(client_id);
`,
		},
	},
}
