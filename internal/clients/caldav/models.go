package caldav

// Calendar is a collection occasions can be published to.
type Calendar struct {
	ID          string // collection path, passed back to PublishOccasion
	DisplayName string
	URL         string
}
