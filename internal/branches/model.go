package branches

import "time"

// Branch represents a sucursal, the tenancy key for almost all data.
type Branch struct {
	ID        int64
	Name      string
	Timezone  string
	Active    bool
	CreatedAt time.Time
}
