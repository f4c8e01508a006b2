package model

// CreateLinkRequest тело запроса на создание ссылки.
type CreateLinkRequest struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	CustomIconURL *string `json:"custom_icon_url"`
}

// ReorderRequest тело запроса на переупорядочивание.
type ReorderRequest struct {
	LinkOrders []LinkOrder `json:"link_orders"`
}

// LinkResponse ссылка вместе с иконкой для отображения.
type LinkResponse struct {
	Link
	IconURL string `json:"icon_url"`
}

// DeleteResponse результат удаления.
type DeleteResponse struct {
	Success bool `json:"success"`
}
