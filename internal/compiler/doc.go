// Package compiler turns resolved plans into executable statements.
//
// Compilation runs in two stages:
//
//  1. Rewrite: each registered Strategy whose Pattern matches a node
//     replaces that subtree. The built-in TopK strategy tags a Sort
//     directly under a Limit with the "topk" impl.
//  2. Physical: the plan is compiled bottom-up. Scalar operands become
//     eval.Expr thunks and every relational node is instantiated by the
//     operator factory registered for its (kind, impl).
//
// A Statement is immutable. Execute allocates a fresh eval.State per
// call, so one Statement may be executed concurrently.
package compiler
