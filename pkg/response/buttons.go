package response

import "github.com/ahmmed-fouad/real-estate-agent/pkg/models"

// Button payloads routed back through the interactive-message branch.
const (
	PayloadScheduleViewing  = "schedule_viewing"
	PayloadTalkToAgent      = "talk_to_agent"
	PayloadCalculatePayment = "calculate_payment"
	PayloadViewMap          = "view_map"
)

var (
	btnScheduleViewing  = Button{Payload: PayloadScheduleViewing, TitleEN: "Schedule viewing", TitleAR: "حجز معاينة"}
	btnTalkToAgent      = Button{Payload: PayloadTalkToAgent, TitleEN: "Talk to agent", TitleAR: "كلم موظف"}
	btnCalculatePayment = Button{Payload: PayloadCalculatePayment, TitleEN: "Calculate payment", TitleAR: "احسب القسط"}
	btnViewMap          = Button{Payload: PayloadViewMap, TitleEN: "View map", TitleAR: "شوف الموقع"}
)

// buttonsFor selects the CTA set for an intent. At most three buttons ever
// come back (the WhatsApp cap).
func buttonsFor(intent models.Intent, hasProperties bool) []Button {
	var buttons []Button
	switch intent {
	case models.IntentPropertyInquiry, models.IntentComparison:
		buttons = []Button{btnScheduleViewing, btnTalkToAgent}
	case models.IntentPriceInquiry:
		buttons = []Button{btnCalculatePayment, btnScheduleViewing, btnTalkToAgent}
	case models.IntentPaymentPlans:
		buttons = []Button{btnCalculatePayment, btnTalkToAgent}
	case models.IntentLocationInfo:
		if hasProperties {
			buttons = []Button{btnViewMap, btnScheduleViewing}
		}
	case models.IntentScheduleViewing:
		buttons = []Button{btnTalkToAgent}
	}
	if len(buttons) > 3 {
		buttons = buttons[:3]
	}
	return buttons
}
