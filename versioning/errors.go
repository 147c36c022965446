package versioning

import "errors"

var ErrNotADocument = errors.New("not a document")
