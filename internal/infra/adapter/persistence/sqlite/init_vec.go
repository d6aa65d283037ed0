package sqlite

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// vec.Auto() registers sqlite-vec as an auto-loadable extension, making the
// vec0 virtual table module and the vec_distance_cosine function available
// on every connection the mattn/go-sqlite3 driver opens in this process.
//
// Adapted from theRebelliousNerd-codenerd's internal/store/init_vec.go,
// minus its build tag: this package already requires cgo for the sqlite
// driver itself, so the vector index is part of the default build.
func init() {
	vec.Auto()
}
