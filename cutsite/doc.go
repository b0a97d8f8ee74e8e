/*Package cutsite describes where concatemer reads are cut into monomers.

A Spec is a non-empty set of Patterns. Each Pattern is a motif written with
IUPAC nucleotide codes plus a cut offset inside the motif, e.g. "G^AATTC" for
EcoRI. Specs come from the built-in restriction enzyme table (see
EnzymeTable), from an explicit site string, or from a marker file listing one
sequence per line.

Matching is done base by base against a compatibility table, so ambiguous
motifs such as "GANTC" are never expanded into their literal variants.
*/
package cutsite
