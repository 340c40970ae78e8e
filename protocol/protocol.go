// Package protocol declares the external surfaces the settlement engine talks
// to: the flash-lending pool, the collateral lend pool, and one interface per
// supported marketplace family together with that family's order shapes and
// typed-data schemas.
//
// Every venue keeps its own authoritative order encoding; the structs here
// mirror those encodings field for field so an order signed off-platform stays
// verifiable when it is replayed through a settlement.
package protocol
