package catalog

// TicketGroupMovie places a movie in a ticket group, the retrieval scope.
type TicketGroupMovie struct {
	TicketGroupID int64 `gorm:"column:ticket_group_id;primaryKey;autoIncrement:false" json:"ticket_group_id"`
	MovieID       int64 `gorm:"column:movie_id;primaryKey;autoIncrement:false;index" json:"movie_id"`
}

func (TicketGroupMovie) TableName() string { return "ticket_group_movies" }
