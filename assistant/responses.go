package assistant

import (
	"hash/fnv"
	"regexp"
	"strings"
)

type intent string

const (
	intentGreeting intent = "greeting"
	intentPoints   intent = "points"
	intentIQ       intent = "iq"
	intentCarbon   intent = "carbon"
	intentTips     intent = "tips"
	intentRewards  intent = "rewards"
	intentTransit  intent = "transit"
	intentDefault  intent = "default"
)

// Rules are checked in order; the first match wins.
var intentRules = []struct {
	intent  intent
	pattern *regexp.Regexp
}{
	{intentGreeting, regexp.MustCompile(`^(hi|hello|hey|good morning|good evening|howdy|greetings)`)},
	{intentPoints, regexp.MustCompile(`point|earn|how.*get|score.*up`)},
	{intentIQ, regexp.MustCompile(`impact.*iq|what.*iq|iq.*score|iq.*mean|tier|ring`)},
	{intentCarbon, regexp.MustCompile(`carbon|co2|emission|footprint|greenhouse`)},
	{intentTips, regexp.MustCompile(`tip|suggest|advice|recommend|idea|habit|eco.?friendly`)},
	{intentRewards, regexp.MustCompile(`reward|coupon|redeem|discount|shop|marketplace`)},
	{intentTransit, regexp.MustCompile(`transit|commute|bus|metro|bike|cycle|walk|route`)},
}

var cannedResponses = map[intent][]Response{
	intentGreeting: {
		{
			Text:        "Hey there! I can help you earn Impact IQ, suggest green habits, or explain how scoring works. What's on your mind?",
			Suggestions: []string{"How do I earn points?", "What is Impact IQ?", "Suggest an eco habit"},
		},
		{
			Text:        "Welcome! Ask me anything about sustainability, your score, or how to make your next trip greener.",
			Suggestions: []string{"Show eco routes", "Daily habit tips", "How do rewards work?"},
		},
	},
	intentPoints: {
		{Text: "You earn IQ through verified eco-actions: scanning sustainable purchases, confirming low-emission routes, and activating impact modes like plant-based meals or thrift shopping. Verified actions earn a 15% boost."},
		{Text: "Points come from three sources: product scans, eco-friendly transit choices, and lifestyle impact modes. Consistency matters more than single big actions, since gains taper as your IQ climbs."},
	},
	intentIQ: {
		{Text: "Impact IQ is your 0-100 sustainability score, blended from three rings: circularity, consumption, and mobility. Growth is fastest in the Foundation tier and tapers as you approach Vanguard at 90+."},
	},
	intentCarbon: {
		{Text: "Every eco-route saves CO2 against a car baseline of 120g per km. Taking the metro over 10 km saves about 850g, and those grams convert directly into IQ bonus points."},
	},
	intentTips: {
		{
			Text:        "Three quick wins: take the metro instead of driving, activate plant-based mode for your next meal, and scan your next sustainable purchase. Small consistent actions beat occasional big ones.",
			Suggestions: []string{"More habit ideas", "Best eco routes", "How does verification work?"},
		},
		{
			Text:        "Highest-impact habits: repair-first mode for electronics, thrift shopping for clothes, and cycling any trip under 15 km. Which one interests you?",
			Suggestions: []string{"Tell me about cycling", "Thrift shopping impact", "Repair-first mode"},
		},
	},
	intentRewards: {
		{Text: "Partner rewards unlock at IQ thresholds from 40 up to 90. Check the rewards list to see what's available now and how many IQ points you need for the locked ones. Redeeming never costs IQ."},
	},
	intentTransit: {
		{Text: "Pick a route and compare modes: walking and cycling are zero-emission, metro beats bus, and anything beats the car baseline. Confirming an eco-route earns an IQ bonus and lifts your mobility ring."},
	},
	intentDefault: {
		{
			Text:        "I'm best at sustainability topics. Ask me about earning points, cutting your carbon footprint, or how the rings and tiers work.",
			Suggestions: []string{"How does scoring work?", "Carbon saving tips", "What can I do today?"},
		},
		{
			Text:        "That's outside my wheelhouse, but I'd love to steer us back to eco-living. Want ideas for reducing your footprint or a tour of how Impact IQ grows?",
			Suggestions: []string{"Eco tips for beginners", "How do tiers work?"},
		},
	},
}

func matchIntent(message string) intent {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, rule := range intentRules {
		if rule.pattern.MatchString(lower) {
			return rule.intent
		}
	}
	return intentDefault
}

// variantIndex picks a reply variant from the message text so repeated
// identical questions get identical answers.
func variantIndex(message string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(message))))
	return int(h.Sum32() % uint32(n))
}
