package testutil

// SeedSQL creates the base tables the fixture fragments read from.
//
// Expected composition over this data:
//
//	unit  variant  first_assignment_date  entry_point_date  orders_created  orders_cancelled  sessions
//	c1    A        2024-01-01             2024-01-05        3               1                 0
//	c2    B        2024-01-01             2024-01-03        0               0                 3
//	c3    A        2024-01-02             2024-01-04        4               1                 0
//
// c4 is assigned but never reaches the entry point; c9 reaches the entry
// point without an assignment. Both are dropped by the exposures join.
const SeedSQL = `
CREATE TABLE assignments_sql (customer_id TEXT, variant TEXT, date_ass TEXT);
INSERT INTO assignments_sql VALUES
    ('c1', 'A', '2024-01-01'),
    ('c2', 'B', '2024-01-01'),
    ('c3', 'A', '2024-01-02'),
    ('c4', 'B', '2024-01-02');

CREATE TABLE entrypoint_sql (customer_id TEXT, date_ep TEXT);
INSERT INTO entrypoint_sql VALUES
    ('c1', '2024-01-05'),
    ('c2', '2024-01-03'),
    ('c3', '2024-01-04'),
    ('c9', '2024-01-04');

CREATE TABLE obs_sql_orders (customer_id TEXT, obs_date TEXT, orders INTEGER, canceled_orders INTEGER);
INSERT INTO obs_sql_orders VALUES
    ('c1', '2024-01-05', 2, 0),
    ('c1', '2024-01-06', 1, 1),
    ('c1', '2024-01-01', 5, 5),
    ('c2', '2024-01-02', 3, 0),
    ('c3', NULL, 4, 1),
    ('c4', '2024-01-10', 7, 7);

CREATE TABLE obs_sql_sessions (customer_id TEXT, obs_date TEXT, sessions INTEGER);
INSERT INTO obs_sql_sessions VALUES
    ('c2', '2024-01-03', 2),
    ('c2', '2024-01-04', 1),
    ('c3', '2024-01-01', 9);
`
