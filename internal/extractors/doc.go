// Package extractors turns stored upload files into plain text.
//
// Each file type has its own subpackage. Registry dispatches on
// domain.FileType and is the driven.ExtractorRegistry used by indexing.
package extractors
