package model

// Smiley is a banked rotation skip: a member earns one when someone else
// covers their turn on a chore, and spends it the next time the rotation
// would land on them. Count never goes below zero.
type Smiley struct {
	MemberID  string `json:"member_id"`
	ChoreName string `json:"chore_name"`
	Count     int    `json:"count"`
}
