package story

import "time"

// Record is a story as returned by the remote Story API.
type Record struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PhotoURL    string    `json:"photoUrl,omitempty"`
	Lat         *float64  `json:"lat,omitempty"`
	Lon         *float64  `json:"lon,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HasLocation reports whether both coordinates are present.
func (r Record) HasLocation() bool {
	return r.Lat != nil && r.Lon != nil
}

// Photo is an image attached to a submission.
type Photo struct {
	Name        string
	ContentType string
	Data        []byte
}

// Submission is a story as built by the presentation layer, before it has
// been sent or queued.
type Submission struct {
	Description string
	Photo       *Photo
	Lat         *float64
	Lon         *float64
}

// HasLocation reports whether both coordinates are present.
func (s Submission) HasLocation() bool {
	return s.Lat != nil && s.Lon != nil
}

// Pending is a submission waiting in the offline queue.
type Pending struct {
	LocalID     string
	Seq         int64
	Description string
	Photo       *Photo
	Lat         *float64
	Lon         *float64
	CreatedAt   time.Time
	Synced      bool
}

// Submission rebuilds the submission that produced this entry.
func (p Pending) Submission() Submission {
	return Submission{
		Description: p.Description,
		Photo:       p.Photo,
		Lat:         p.Lat,
		Lon:         p.Lon,
	}
}

// Float returns a pointer to v. Handy for optional coordinates.
func Float(v float64) *float64 {
	return &v
}
