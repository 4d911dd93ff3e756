package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const specialBenchFormHTML = `<html><body>
<form method="post">
<input type="hidden" name="yo" value="7">
<select name="bench_type">
<option value="">-- छान्नुहोस् --</option>
<option value="1">इजलास नं १</option>
<option value="2">इजलास नं २</option>
</select>
</form>
</body></html>`

const specialCauseListHTML = `<html><body>
<font size="3">इजलास नं : १</font>
<table width="100%" border="0"><tr><td>
<font size="2">अध्यक्ष माननीय न्यायाधीश श्री राम<br>सदस्य माननीय न्यायाधीश श्री श्याम</font>
</td></tr></table>
<table width="100%" border="1">
<tr><th>क्र.सं.</th><th>वर्ग</th><th>दर्ता मिति</th><th>मुद्दाको किसिम</th><th>मुद्दा नं</th>
<th>वादी</th><th>प्रतिवादी</th><th>साविक मुद्दा नं</th><th>कैफियत</th><th>स्थिति</th><th>फैसला किसिम</th></tr>
<tr>
  <td>१</td><td>भ्रष्टाचार</td><td>२०७९-०४-२३</td><td>घुस रिसवत</td>
  <td>०७९-CR-००४५</td><td>नेपाल सरकार</td><td>हरि बहादुर</td>
  <td>०७५-CR-००१२(साविक )</td><td></td><td>हेर्न बाँकी</td><td></td>
</tr>
<tr><td>२</td><td>भ्रष्टाचार</td><td></td><td></td><td></td><td></td><td></td><td></td><td></td><td></td><td></td></tr>
<tr><td>३</td><td>short row</td></tr>
</table>
</body></html>`

func TestSpecialBenchForm(t *testing.T) {
	p := New(zap.NewNop())

	form, found := p.SpecialBenchForm([]byte(specialBenchFormHTML))
	require.True(t, found)
	assert.Equal(t, "7", form.Yo)
	require.Len(t, form.Benches, 2, "empty-value option skipped")
	assert.Equal(t, "1", form.Benches[0].Value)
	assert.Equal(t, "इजलास नं १", form.Benches[0].Label)
	assert.Equal(t, "2", form.Benches[1].Value)
}

func TestSpecialBenchFormAbsent(t *testing.T) {
	p := New(zap.NewNop())

	_, found := p.SpecialBenchForm([]byte(`<html><body><p>no sittings</p></body></html>`))
	assert.False(t, found)
}

func TestSpecialBenchFormDefaultsYo(t *testing.T) {
	p := New(zap.NewNop())

	body := `<select name="bench_type"><option value="5">इजलास</option></select>`
	form, found := p.SpecialBenchForm([]byte(body))
	require.True(t, found)
	assert.Equal(t, "1", form.Yo)
}

func TestSpecialCauseList(t *testing.T) {
	p := New(zap.NewNop())

	rows, sitting := p.SpecialCauseList([]byte(specialCauseListHTML))
	assert.Equal(t, "इजलास नं : १", sitting.CourtNumber)
	assert.Equal(t, "अध्यक्ष माननीय न्यायाधीश श्री राम\nसदस्य माननीय न्यायाधीश श्री श्याम", sitting.Judges)

	// Row without a case number and the short row are both skipped.
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, "1", r.SerialNo)
	assert.Equal(t, "भ्रष्टाचार", r.Category)
	assert.Equal(t, "2079-04-23", r.RegistrationDateBS)
	assert.Equal(t, "घुस रिसवत", r.CaseType)
	assert.Equal(t, "०७९-CR-००४५", r.CaseNumber)
	assert.Equal(t, "नेपाल सरकार", r.Plaintiff)
	assert.Equal(t, "हरि बहादुर", r.Defendant)
	assert.Equal(t, "०७५-CR-००१२(साविक)", r.OriginalCaseNumber)
	assert.Equal(t, "हेर्न बाँकी", r.Status)
	assert.Empty(t, r.DecisionType)
}

func TestSpecialCauseListNoTable(t *testing.T) {
	p := New(zap.NewNop())

	rows, sitting := p.SpecialCauseList([]byte(`<html><body></body></html>`))
	assert.Empty(t, rows)
	assert.Empty(t, sitting.CourtNumber)
}
