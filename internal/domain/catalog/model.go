package catalog

import "github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/locale"

// Symptom is one entry of the static symptom catalog.
type Symptom struct {
	ID   string      `db:"id" json:"id"`
	Name locale.Text `json:"name"`
	Icon string      `db:"icon" json:"icon"`
}

type HealthTip struct {
	ID   int         `json:"id"`
	Text locale.Text `json:"text"`
}

type EmergencyContact struct {
	Name   locale.Text `json:"name"`
	Number string      `json:"number"`
}

// Screen names a view whose welcome text is read aloud on arrival.
type Screen string

const (
	ScreenWelcome          Screen = "welcome"
	ScreenPatientLogin     Screen = "patient-login"
	ScreenPatientRegister  Screen = "patient-register"
	ScreenAdminLogin       Screen = "admin-login"
	ScreenDoctorLogin      Screen = "doctor-login"
	ScreenPatientDashboard Screen = "patient-dashboard"
	ScreenAdminDashboard   Screen = "admin-dashboard"
	ScreenDoctorDashboard  Screen = "doctor-dashboard"
)

// Utterance is a prompt rendered in the requested language, with the tag
// the speech synthesizer should use.
type Utterance struct {
	Screen    Screen `json:"screen"`
	Text      string `json:"text"`
	SpeechTag string `json:"speechTag"`
}

// Section titles shown above the tip and contact lists.
var (
	HealthTipsTitle        = locale.Text{English: "Health Tips", Telugu: "ఆరోగ్య చిట్కాలు"}
	EmergencyContactsTitle = locale.Text{English: "Emergency Contacts", Telugu: "అత్యవసర సంప్రదింపులు"}
)

var healthTips = []HealthTip{
	{ID: 1, Text: locale.Text{
		English: "Stay hydrated by drinking at least 8 glasses of water daily",
		Telugu:  "రోజుకి కనీసం 8 గ్లాసుల నీరు త్రాగడం ద్వారా హైడ్రేటెడ్‌గా ఉండండి",
	}},
	{ID: 2, Text: locale.Text{
		English: "Exercise for at least 30 minutes every day",
		Telugu:  "ప్రతిరోజూ కనీసం 30 నిమిషాలు వ్యాయామం చేయండి",
	}},
	{ID: 3, Text: locale.Text{
		English: "Get 7-8 hours of sleep each night",
		Telugu:  "ప్రతి రాత్రి 7-8 గంటల నిద్ర పొందండి",
	}},
}

// Contact names are shown untranslated in both languages.
var emergencyContacts = []EmergencyContact{
	{Name: locale.Text{English: "ASHA Worker", Telugu: "ASHA Worker"}, Number: "108"},
	{Name: locale.Text{English: "Ambulance", Telugu: "Ambulance"}, Number: "102"},
	{Name: locale.Text{English: "Emergency", Telugu: "Emergency"}, Number: "112"},
}

// speechPrompts hold a {name} placeholder on the dashboard screens.
var speechPrompts = map[Screen]locale.Text{
	ScreenWelcome: {
		English: "Welcome to ASHASEVA, your rural healthcare companion. Are you a patient or a healthcare worker?",
		Telugu:  "ASHASEVA కి స్వాగతం, మీ గ్రామీణ ఆరోగ్య సహచరి. మీరు రోగి లేదా ఆరోగ్య కార్యకర్త?",
	},
	ScreenPatientLogin: {
		English: "Welcome to patient login. Please enter your registered mobile number or unique ID to continue.",
		Telugu:  "రోగి లాగిన్‌కు స్వాగతం. కొనసాగించడానికి దయచేసి మీ రిజిస్టర్ చేసిన ఫోన్ నెంబరు లేదా యూనిక్ ఐడి నమోదు చేయండి.",
	},
	ScreenPatientRegister: {
		English: "Please complete your registration by filling out all fields.",
		Telugu:  "దయచేసి అన్ని ఫీల్డ్‌లను నింపడం ద్వారా మీ నమోదును పూర్తి చేయండి.",
	},
	ScreenAdminLogin: {
		English: "Welcome to ASHA worker login. Please enter your phone number and area code to continue.",
		Telugu:  "ASHA కార్యకర్త లాగిన్‌కు స్వాగతం. కొనసాగించడానికి దయచేసి మీ ఫోన్ నంబర్ మరియు ప్రాంత కోడ్‌ను నమోదు చేయండి.",
	},
	ScreenDoctorLogin: {
		English: "Welcome to Doctor login. Please enter your registered mobile number or unique ID to continue.",
		Telugu:  "డాక్టర్ లాగిన్‌కు స్వాగతం. కొనసాగించడానికి దయచేసి మీ ఫోన్ నంబర్ లేదా ఐడి నమోదు చేయండి.",
	},
	ScreenPatientDashboard: {
		English: "Welcome {name}. Please select a symptom you are experiencing, or view your past requests.",
		Telugu:  "స్వాగతం {name}. దయచేసి మీరు అనుభవిస్తున్న లక్షణాన్ని ఎంచుకోండి లేదా మీ గత అభ్యర్థనలను చూడండి.",
	},
	ScreenAdminDashboard: {
		English: "Welcome {name}. You can view all patients in your area and their health requests.",
		Telugu:  "స్వాగతం {name}. మీరు మీ ప్రాంతంలోని అన్ని రోగులను మరియు వారి ఆరోగ్య అభ్యర్థనలను చూడవచ్చు.",
	},
	ScreenDoctorDashboard: {
		English: "Welcome Dr. {name}. You can review patient health requests and monitor their medication logs.",
		Telugu:  "స్వాగతం డాక్టర్ {name}. మీరు రోగుల ఆరోగ్య అభ్యర్థనలను సమీక్షించవచ్చు మరియు వారి మందుల లాగ్‌లను పర్యవేక్షించవచ్చు.",
	},
}
