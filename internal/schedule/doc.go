// Package schedule partitions test nodes across parallel workers.
//
// Nodes are grouped by the browser identity tag embedded in their id,
// "(chrome:latest)" in "tests/login_test.py::test_login[(chrome:latest)]".
// Nodes without a tag are grouped by the file part of the id, the text
// before the first "::". Each group goes to exactly one worker so that a
// worker provisions one sandbox per group and reuses it for every node in
// the group. Within a group, nodes keep their manifest order.
//
// Groups are assigned largest-cost first to the least loaded worker, lowest
// worker index winning ties, which makes the plan deterministic for a given
// manifest and worker count.
package schedule
