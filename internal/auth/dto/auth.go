package dto

// ConnectIMAPRequest stores an IMAP mailbox (app password) for the caller
type ConnectIMAPRequest struct {
	Host     string `json:"host" binding:"required"`
	Port     int    `json:"port"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	UseTLS   *bool  `json:"use_tls"`
}

type RegisterFCMRequest struct {
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"device_info"`
}
