package model

// Provider is the read-only directory view this core consumes: identity,
// verification, and pricing. Profile management lives outside the booking
// core.
type Provider struct {
	Base
	Name               string  `db:"name" json:"name"`
	Email              string  `db:"email" json:"email"`
	IsVerified         bool    `db:"is_verified" json:"is_verified"`
	HourlyRate         *Money  `db:"hourly_rate" json:"hourly_rate,omitempty"`
	Timezone           string  `db:"timezone" json:"timezone"`
	OffersFirstSession bool    `db:"offers_first_session_discount" json:"offers_first_session_discount"`
	Specialization     *string `db:"specialization" json:"specialization,omitempty"`
}

// Client is the booking-side view of a client account. HadFirstConsultation
// tracks whether the one-time discount has been consumed.
type Client struct {
	Base
	Name                 string `db:"name" json:"name"`
	Email                string `db:"email" json:"email"`
	HadFirstConsultation bool   `db:"had_first_consultation" json:"had_first_consultation"`
}
