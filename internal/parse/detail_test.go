package parse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const caseDetailHTML = `<html><body>
<div class="content">
<dl>
  <dt>रजिष्ट्रेशन नं :</dt><dd>०७७-सीआर-१२३४</dd>
  <dt>मुद्दाको बिषय :</dt><dd>कर्तव्य ज्यान</dd>
  <dt>मुद्दाको स्थिति :</dt><dd>चालु</dd>
  <dt>फैसला मिति :</dt><dd>२०८०-०५-१०</dd>
  <dt>फैसला गर्ने मा. न्यायाधीश :</dt><dd>मा. न्या. गोपाल</dd>
  <dt>पेशी चढेको संख्या :</dt><dd>७</dd>
  <dt>दर्ता शाखा :</dt><dd>--</dd>
</dl>
<table>
<tr><td><h4>वादी/प्रतिवादीको विवरण</h4></td></tr>
<tr><td>
  <table class="record_display">
    <tr><th colspan="2">वादी</th></tr>
    <tr><th>नाम</th><th>ठेगाना</th></tr>
    <tr><td>नेपाल सरकार</td><td>काठमाडौं</td></tr>
  </table>
  <table class="record_display">
    <tr><th colspan="2">प्रतिवादी</th></tr>
    <tr><th>नाम</th><th>ठेगाना</th></tr>
    <tr><td>राम बहादुर</td><td>ललितपुर</td></tr>
    <tr><td>श्याम बहादुर</td><td></td></tr>
  </table>
</td></tr>
<tr><td><h4>पेशी विवरण</h4></td></tr>
<tr><td>
  <table class="record_display">
    <tr><th>मिति</th><th>किसिम</th><th>इजलास</th><th>न्यायाधीश</th><th>आदेश</th></tr>
    <tr><td>२०८०-०४-०१</td><td>पेशी</td><td>फौजदारी</td><td>मा. न्या. गोपाल</td><td>स्थगित</td></tr>
    <tr><td>२०८०-०५-१०</td><td>पेशी</td><td>फौजदारी</td><td>मा. न्या. गोपाल</td><td>फैसला</td></tr>
  </table>
</td></tr>
<tr><td><h4>तारेख विवरण</h4></td></tr>
<tr><td>
  <table class="record_display">
    <tr><th>मिति</th><th>किसिम</th></tr>
    <tr><td>२०८०-०३-२०</td><td>तारेख</td></tr>
  </table>
</td></tr>
</table>
</div>
</body></html>`

func TestCaseDetail(t *testing.T) {
	p := New(zap.NewNop())

	d, ok := p.CaseDetail([]byte(caseDetailHTML))
	require.True(t, ok)

	assert.Equal(t, "077-सीआर-1234", d.RegistrationNumber)
	assert.Equal(t, "कर्तव्य ज्यान", d.Subject)
	assert.Equal(t, "चालु", d.CaseStatus)
	assert.Equal(t, "2080-05-10", d.VerdictDateBS)
	assert.Equal(t, "मा. न्या. गोपाल", d.VerdictJudge)
	assert.Equal(t, "7", d.HearingCount)

	require.Len(t, d.Entities, 3)
	assert.Equal(t, DetailEntity{Side: "plaintiff", Name: "नेपाल सरकार", Address: "काठमाडौं"}, d.Entities[0])
	assert.Equal(t, "defendant", d.Entities[1].Side)
	assert.Equal(t, "राम बहादुर", d.Entities[1].Name)
	assert.Equal(t, "श्याम बहादुर", d.Entities[2].Name)
	assert.Empty(t, d.Entities[2].Address)

	require.Len(t, d.Hearings, 2)
	assert.Equal(t, "2080-04-01", d.Hearings[0].DateBS)
	assert.Equal(t, "स्थगित", d.Hearings[0].Order)
	assert.Equal(t, "फैसला", d.Hearings[1].Order)

	require.Len(t, d.Timeline, 1)
	assert.Equal(t, "2080-03-20", d.Timeline[0].DateBS)
	assert.Equal(t, "तारेख", d.Timeline[0].Type)
}

func TestCaseDetailNotFound(t *testing.T) {
	p := New(zap.NewNop())

	d, ok := p.CaseDetail([]byte(`<html><body><p>Invalid request</p></body></html>`))
	assert.False(t, ok)
	assert.Nil(t, d)
}

func TestCaseDetailTruncatesLongFields(t *testing.T) {
	p := New(zap.NewNop())

	long := strings.Repeat("क", 600)
	body := `<html><body>
	<table>
	<tr><td><h4>वादी/प्रतिवादीको विवरण</h4></td></tr>
	<tr><td>
	  <table class="record_display">
	    <tr><th colspan="2">वादी</th></tr>
	    <tr><th>नाम</th><th>ठेगाना</th></tr>
	    <tr><td>` + long + `</td><td>ठेगाना</td></tr>
	  </table>
	</td></tr>
	</table>
	</body></html>`

	d, ok := p.CaseDetail([]byte(body))
	require.True(t, ok)
	require.Len(t, d.Entities, 1)
	assert.Len(t, []rune(d.Entities[0].Name), maxEntityFieldLen)
}
