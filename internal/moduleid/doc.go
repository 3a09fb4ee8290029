/*
Package moduleid provides structured, type-safe identifiers for modules,
ports and connections within a network.

A module identifier has the canonical form `Name:N`, where Name is the
descriptor name the module was created from and N is a per-name instance
counter, e.g. `SendTestMatrix:0`.

A port reference appends a bracketed port index, e.g. `SendTestMatrix:0[0]`,
and a connection is written as `source->destination` using two port
references, e.g. `SendTestMatrix:0[0]->ReportMatrixInfo:1[0]`.

This package centralizes all formatting and parsing of these identifiers.
*/
package moduleid
