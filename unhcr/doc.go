// Package unhcr is a client for the UNHCR population statistics API.
//
// The API takes a year selector that may be a single year or a
// comma-separated list. [Year] models the shapes callers may send and
// [NormalizeYear] turns them into the query value the API expects:
//
//	p := unhcr.NormalizeYear(unhcr.YearText("2022, 2023"))
//	p.Value() // "2022,2023"
//
// [Client.Population] performs the query and returns the raw JSON body.
package unhcr
