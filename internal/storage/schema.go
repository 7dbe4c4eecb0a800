package storage

// Schema is the SQL schema for the business context database.
// Structured sub-objects are stored as JSON text; NULL means "never written".
const Schema = `
CREATE TABLE IF NOT EXISTS projects (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT 'active'
                CHECK(status IN ('active', 'archived', 'completed')),
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_projects_user ON projects(user_id, status, updated_at);
-- At most one active project per user.
CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_one_active ON projects(user_id) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS company_profiles (
    id                TEXT PRIMARY KEY,
    project_id        TEXT NOT NULL UNIQUE REFERENCES projects(id) ON DELETE CASCADE,
    business_idea     TEXT,
    business_name     TEXT,
    problem_statement TEXT,
    value_proposition TEXT,
    mission_statement TEXT,
    brand_story       TEXT,
    target_market     TEXT,
    updated_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS market_intelligence (
    id                TEXT PRIMARY KEY,
    project_id        TEXT NOT NULL UNIQUE REFERENCES projects(id) ON DELETE CASCADE,
    market_size       TEXT,
    competitors       TEXT,
    pricing_research  TEXT,
    customer_feedback TEXT,
    updated_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS product_specifications (
    id           TEXT PRIMARY KEY,
    project_id   TEXT NOT NULL UNIQUE REFERENCES projects(id) ON DELETE CASCADE,
    features     TEXT,
    tech_stack   TEXT,
    architecture TEXT,
    roadmap      TEXT,
    updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS business_operations (
    id          TEXT PRIMARY KEY,
    project_id  TEXT NOT NULL UNIQUE REFERENCES projects(id) ON DELETE CASCADE,
    financials  TEXT,
    team        TEXT,
    legal       TEXT,
    metrics     TEXT,
    updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS agent_outputs (
    id          TEXT PRIMARY KEY,
    project_id  TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    agent_id    TEXT NOT NULL,
    data        TEXT NOT NULL,
    metadata    TEXT,
    created_at  TEXT NOT NULL,
    UNIQUE(project_id, agent_id)
);

CREATE INDEX IF NOT EXISTS idx_agent_outputs_project ON agent_outputs(project_id, created_at);
`

// pragmas is appended to the DSN; both drivers accept the _pragma form.
const pragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
