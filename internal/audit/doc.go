// Package audit keeps the append-only trail of who changed which gadget and
// who signed in. Entries are written by the API layer and listed newest
// first with offset paging.
package audit
