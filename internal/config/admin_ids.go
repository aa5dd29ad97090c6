package config

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// parseAdminIDs accepts a comma or space separated list of telegram user ids.
func parseAdminIDs(raw string) ([]int64, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid ADMIN_IDS entry %q", f)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
