package store

// schema is applied once per cache open; every statement is idempotent so
// opening an existing cache is a no-op. Grounded on
// _examples/yashwanth-reddy909-beads/internal/storage/sqlite/schema.go,
// reshaped to spec.md §3's leaner data model (no hierarchical ids, no
// compaction, no audit-event table) and to its exact table list: "issues,
// tags, issue-tag join, comments, dependencies, metadata" plus the FTS
// virtual table over title+body+comments.
const schema = `
CREATE TABLE IF NOT EXISTS issues (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    body TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    priority INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    rev TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status);
CREATE INDEX IF NOT EXISTS idx_issues_updated_at ON issues(updated_at);

CREATE TABLE IF NOT EXISTS tags (
    tag TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS issue_tags (
    issue_id TEXT NOT NULL,
    tag TEXT NOT NULL,
    PRIMARY KEY (issue_id, tag),
    FOREIGN KEY (issue_id) REFERENCES issues(id) ON DELETE CASCADE,
    FOREIGN KEY (tag) REFERENCES tags(tag) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_issue_tags_tag ON issue_tags(tag);

CREATE TABLE IF NOT EXISTS comments (
    id TEXT PRIMARY KEY,
    issue_id TEXT NOT NULL,
    body TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (issue_id) REFERENCES issues(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_comments_issue ON comments(issue_id, created_at);

CREATE TABLE IF NOT EXISTS dependencies (
    src_id TEXT NOT NULL,
    dst_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    state TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    rev TEXT NOT NULL,
    PRIMARY KEY (src_id, dst_id, kind),
    FOREIGN KEY (src_id) REFERENCES issues(id) ON DELETE CASCADE,
    FOREIGN KEY (dst_id) REFERENCES issues(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_dependencies_dst ON dependencies(dst_id, kind, state);
CREATE INDEX IF NOT EXISTS idx_dependencies_src ON dependencies(src_id, kind, state);

CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS issues_fts USING fts5(
    id UNINDEXED,
    title,
    body,
    comments
);

-- Ready query (spec.md §4.5): open issues with no transitive "blocks"
-- blocker whose ultimate source is active. Grounded on the recursive-CTE
-- shape of the teacher's ready_issues view, replacing its parent-child
-- propagation with forward propagation through blocks edges, since spec.md
-- has no parent-child blocking inheritance.
CREATE VIEW IF NOT EXISTS ready_issues AS
WITH RECURSIVE blocked(issue_id) AS (
    SELECT d.dst_id
    FROM dependencies d
    JOIN issues src ON src.id = d.src_id
    WHERE d.kind = 'blocks' AND d.state = 'active'
      AND src.status IN ('open', 'in_progress', 'paused')
    UNION
    SELECT d.dst_id
    FROM dependencies d
    JOIN blocked b ON d.src_id = b.issue_id
    WHERE d.kind = 'blocks' AND d.state = 'active'
)
SELECT i.*
FROM issues i
WHERE i.status = 'open'
  AND i.id NOT IN (SELECT issue_id FROM blocked);
`

// Metadata keys (spec.md §3 "Store metadata").
const (
	metaIDPrefix   = "id_prefix"
	metaJSONLOff   = "jsonl_offset"
	metaJSONLInode = "jsonl_inode"
	metaJSONLMtime = "jsonl_mtime"
)
