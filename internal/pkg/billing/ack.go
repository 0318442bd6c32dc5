package billing

import (
	"github.com/ManuelReschke/MemberPay/app/models"
)

// Ack is the response body a provider expects from a callback endpoint.
type Ack struct {
	Success     bool
	ContentType string
	Body        string
}

const (
	wechatSuccessBody = "<xml><return_code><![CDATA[SUCCESS]]></return_code><return_msg><![CDATA[OK]]></return_msg></xml>"
)

// SuccessAck tells the provider to stop retrying.
func SuccessAck(provider string) Ack {
	if provider == models.PaymentProviderWeChat {
		return Ack{Success: true, ContentType: "application/xml", Body: wechatSuccessBody}
	}
	return Ack{Success: true, ContentType: "text/plain", Body: "success"}
}

// FailAck asks the provider to deliver the notification again.
func FailAck(provider, msg string) Ack {
	if provider == models.PaymentProviderWeChat {
		if msg == "" {
			msg = "FAIL"
		}
		return Ack{ContentType: "application/xml", Body: "<xml><return_code><![CDATA[FAIL]]></return_code><return_msg><![CDATA[" + msg + "]]></return_msg></xml>"}
	}
	return Ack{ContentType: "text/plain", Body: "fail"}
}
