/*
Package meta is the attribute codec between pkg/types resources and the
flat attribute maps pkg/storage persists. See attrs.go for the full
rationale; the short version is ResourceToAttrMap and AttrMapToResource are
the only two entry points pkg/snapshot calls.
*/
package meta
