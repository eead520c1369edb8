// Package fragment reduces a user-authored SQL fragment to a reusable
// common-table-expression body.
//
// INPUT SHAPE:
//
// A fragment is expected to look like:
//
//	with orders as (
//	    select customer_id, obs_date, sum(orders) as orders_created
//	    from raw_orders
//	    group by 1, 2
//	)
//	select * from orders
//
// The leading WITH keyword and the first CTE name share the first line,
// and the fragment ends with a single-line terminal select of the shape
// SELECT * FROM <name>.
//
// Normalize strips the WITH keyword and the terminal select, leaving a CTE
// list that can be spliced into a larger WITH clause, and reports the table
// the terminal select read from (the exposed name). This is a positional
// text matcher, not a SQL parser: fragments outside the shape above are
// normalized on a best-effort basis and never rejected here.
package fragment
