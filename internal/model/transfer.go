package model

// Transfer is one conditional ownership move: ObjectID goes from FromOwnerID
// to ToOwnerID only if FromOwnerID still owns it.
type Transfer struct {
	ObjectID    string `json:"object_id"`
	FromOwnerID string `json:"from_owner_id"`
	ToOwnerID   string `json:"to_owner_id"`
}
