package story

import (
	"errors"
	"fmt"
	"strings"
)

// MaxPhotoBytes is the largest photo the Story API accepts.
const MaxPhotoBytes = 1 << 20

// SupportedPhotoTypes lists the accepted photo content types.
var SupportedPhotoTypes = []string{"image/jpeg", "image/jpg", "image/png"}

// ErrInvalidSubmission is matched by errors.Is for every validation failure.
var ErrInvalidSubmission = errors.New("invalid submission")

// Validate checks a submission before it is sent or queued.
func (s Submission) Validate() error {
	if strings.TrimSpace(s.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidSubmission)
	}
	if (s.Lat == nil) != (s.Lon == nil) {
		return fmt.Errorf("%w: lat and lon must be given together", ErrInvalidSubmission)
	}
	if s.Lat != nil && (*s.Lat < -90 || *s.Lat > 90) {
		return fmt.Errorf("%w: lat %v out of range", ErrInvalidSubmission, *s.Lat)
	}
	if s.Lon != nil && (*s.Lon < -180 || *s.Lon > 180) {
		return fmt.Errorf("%w: lon %v out of range", ErrInvalidSubmission, *s.Lon)
	}
	if s.Photo != nil {
		if len(s.Photo.Data) == 0 {
			return fmt.Errorf("%w: photo is empty", ErrInvalidSubmission)
		}
		if len(s.Photo.Data) > MaxPhotoBytes {
			return fmt.Errorf("%w: photo is %d bytes, limit is %d", ErrInvalidSubmission, len(s.Photo.Data), MaxPhotoBytes)
		}
		if !supportedType(s.Photo.ContentType) {
			return fmt.Errorf("%w: photo type %q not supported", ErrInvalidSubmission, s.Photo.ContentType)
		}
	}
	return nil
}

func supportedType(ct string) bool {
	for _, t := range SupportedPhotoTypes {
		if strings.EqualFold(ct, t) {
			return true
		}
	}
	return false
}
