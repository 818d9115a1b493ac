// Package scraper holds the pieces every site adapter is built from.
//
// Pulling a record out of a portal generally has this structure:
//  1. make sure the page can be interacted with (nothing is covering it).
//  2. find each field with an ordered chain of structural queries, most
//     specific first, falling back to looser ones, because the same field
//     renders differently across account tiers and site versions.
//  3. walk any paged listing until its "next" control reports disabled,
//     bounded so a misidentified control can never loop forever.
//
// A field that no strategy in its chain can find is left empty. Absence is a
// result, not an error.
package scraper
