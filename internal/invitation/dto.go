package invitation

type CreateInvitationDTO struct {
	Email             string `json:"email"`
	ExpirationInHours int    `json:"expiration_in_hours"`
}

type AcceptInvitationDTO struct {
	Token string `json:"token"`
}

type InvitationResponse struct {
	Invitation
	Expired bool `json:"expired"`
}
