package importer

import (
	"strings"
	"testing"

	"github.com/memvault/memvault/pkg/model"
)

func TestGetParser(t *testing.T) {
	for _, source := range []Source{Source1Password, SourceBitwarden, SourceLastPass} {
		p, err := GetParser(source)
		if err != nil {
			t.Fatalf("GetParser(%s) failed: %v", source, err)
		}
		if p.Source() != source {
			t.Errorf("parser source = %s, want %s", p.Source(), source)
		}
	}
	if _, err := GetParser("keepass"); err == nil {
		t.Error("expected error for unsupported source")
	}
}

func TestBitwardenLogin(t *testing.T) {
	data := []byte(`{
		"encrypted": false,
		"folders": [{"id": "f1", "name": "Work\\Infra"}],
		"items": [{
			"type": 1,
			"name": "GitHub",
			"notes": "main account",
			"favorite": true,
			"folderId": "f1",
			"login": {
				"uris": [{"uri": "https://github.com"}],
				"username": "octocat",
				"password": "hunter2",
				"totp": "otpauth://totp/GitHub:octocat?secret=JBSWY3DPEHPK3PXP&issuer=GitHub"
			},
			"fields": [
				{"name": "recovery code", "value": "abc-def", "type": 1}
			]
		}]
	}`)

	p := &BitwardenParser{}
	result, err := p.Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(result.Records))
	}
	rec := result.Records[0]
	if rec.Title != "GitHub" {
		t.Errorf("title = %q", rec.Title)
	}
	if rec.Type != "login" {
		t.Errorf("type = %q", rec.Type)
	}
	if !rec.Favorite {
		t.Error("favorite not set")
	}
	if rec.Notes != "main account" {
		t.Errorf("notes = %q", rec.Notes)
	}
	if rec.FolderPath != "Work/Infra" {
		t.Errorf("folder path = %q", rec.FolderPath)
	}
	if got := rec.FieldValue("username"); got != "octocat" {
		t.Errorf("username = %q", got)
	}
	if got := rec.FieldValue("password"); got != "hunter2" {
		t.Errorf("password = %q", got)
	}
	if got := rec.FieldValue("totp"); got != "JBSWY3DPEHPK3PXP" {
		t.Errorf("totp = %q, want bare secret", got)
	}
	totp, _ := rec.Field("totp")
	if totp.Type != model.FieldTypeTOTPSecret {
		t.Errorf("totp field type = %q", totp.Type)
	}
	custom, ok := rec.Field("recovery code")
	if !ok {
		t.Fatal("custom field missing")
	}
	if !custom.Sensitive {
		t.Error("hidden custom field not marked sensitive")
	}
}

func TestBitwardenCardAndIdentity(t *testing.T) {
	data := []byte(`{
		"encrypted": false,
		"items": [
			{
				"type": 3,
				"name": "Visa",
				"card": {
					"cardholderName": "Jane Doe",
					"number": "4111111111111111",
					"expMonth": "04",
					"expYear": "2028",
					"code": "123"
				}
			},
			{
				"type": 4,
				"name": "Passport",
				"identity": {
					"firstName": "Jane",
					"lastName": "Doe",
					"email": "jane@example.com",
					"ssn": "123-45-6789"
				}
			},
			{"type": 99, "name": "Mystery"}
		]
	}`)

	p := &BitwardenParser{}
	result, err := p.Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(result.Records))
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Name != "Mystery" {
		t.Fatalf("skipped = %+v", result.Skipped)
	}

	card := result.Records[0]
	if card.Type != "credit_card" {
		t.Errorf("card type = %q", card.Type)
	}
	if got := card.FieldValue("expiry"); got != "04/2028" {
		t.Errorf("expiry = %q", got)
	}
	if got := card.FieldValue("cvv"); got != "123" {
		t.Errorf("cvv = %q", got)
	}

	id := result.Records[1]
	if got := id.FieldValue("full_name"); got != "Jane Doe" {
		t.Errorf("full_name = %q", got)
	}
	ssn, _ := id.Field("ssn")
	if !ssn.Sensitive {
		t.Error("ssn not marked sensitive")
	}
}

func TestBitwardenEncryptedRejected(t *testing.T) {
	if _, err := (&BitwardenParser{}).Parse([]byte(`{"encrypted": true, "items": []}`)); err == nil {
		t.Error("expected error for encrypted export")
	}
}

func TestBitwardenInvalidJSON(t *testing.T) {
	if _, err := (&BitwardenParser{}).Parse([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestLastPassLoginAndSecureNote(t *testing.T) {
	data := []byte("url,username,password,totp,extra,name,grouping,fav\n" +
		"https://example.com,alice,s3cret,JBSWY3DPEHPK3PXP,some notes,Example,Personal\\Sites,1\n" +
		"http://sn,,,,note body here,My Note,,0\n")

	p := &LastPassParser{}
	result, err := p.Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(result.Records))
	}

	login := result.Records[0]
	if login.Type != "login" {
		t.Errorf("type = %q", login.Type)
	}
	if !login.Favorite {
		t.Error("favorite not set")
	}
	if login.FolderPath != "Personal/Sites" {
		t.Errorf("folder path = %q", login.FolderPath)
	}
	if got := login.FieldValue("totp"); got != "JBSWY3DPEHPK3PXP" {
		t.Errorf("totp = %q", got)
	}

	note := result.Records[1]
	if note.Type != "secure_note" {
		t.Errorf("note type = %q", note.Type)
	}
	if note.Notes != "note body here" {
		t.Errorf("notes = %q", note.Notes)
	}
	if len(note.Fields) != 0 {
		t.Errorf("secure note has %d fields, want 0", len(note.Fields))
	}
}

func TestLastPassHTMLEntities(t *testing.T) {
	data := []byte("url,username,password,totp,extra,name,grouping,fav\n" +
		"https://example.com,bob&amp;co,p&lt;w&gt;d,,,Smith &amp; Sons,,0\n")

	result, err := (&LastPassParser{}).Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	rec := result.Records[0]
	if rec.Title != "Smith & Sons" {
		t.Errorf("title = %q", rec.Title)
	}
	if got := rec.FieldValue("username"); got != "bob&co" {
		t.Errorf("username = %q", got)
	}
	if got := rec.FieldValue("password"); got != "p<w>d" {
		t.Errorf("password = %q", got)
	}
}

func TestLastPassBOMAndFallbackTitle(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("url,username,password,totp,extra,name,grouping,fav\n"+
		"https://www.example.com/login,carol,pw,,,,,0\n")...)

	result, err := (&LastPassParser{}).Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("got %d records", len(result.Records))
	}
	if result.Records[0].Title != "example.com" {
		t.Errorf("fallback title = %q", result.Records[0].Title)
	}
}

func TestLastPassMissingURLColumn(t *testing.T) {
	if _, err := (&LastPassParser{}).Parse([]byte("name,password\nfoo,bar\n")); err == nil {
		t.Error("expected error for missing url column")
	}
}

func TestOnePasswordParse(t *testing.T) {
	data := []byte("Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes\n" +
		"GitHub,https://github.com,octocat,hunter2,otpauth://totp/x?secret=JBSWY3DPEHPK3PXP,true,false,\"work, dev\",ssh key in drawer\n" +
		"Old Site,https://old.example.com,nobody,pw,,false,true,,\n")

	p := &OnePasswordParser{}
	result, err := p.Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(result.Records))
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Reason != "archived" {
		t.Fatalf("skipped = %+v", result.Skipped)
	}

	rec := result.Records[0]
	if rec.Title != "GitHub" {
		t.Errorf("title = %q", rec.Title)
	}
	if !rec.Favorite {
		t.Error("favorite not set")
	}
	if rec.Notes != "ssh key in drawer" {
		t.Errorf("notes = %q", rec.Notes)
	}
	if len(rec.Tags) != 2 || rec.Tags[0] != "work" || rec.Tags[1] != "dev" {
		t.Errorf("tags = %v", rec.Tags)
	}
	if got := rec.FieldValue("totp"); got != "JBSWY3DPEHPK3PXP" {
		t.Errorf("totp = %q", got)
	}
}

func TestOnePasswordMissingTitleColumn(t *testing.T) {
	if _, err := (&OnePasswordParser{}).Parse([]byte("Website,Password\nx,y\n")); err == nil {
		t.Error("expected error for missing title column")
	}
}

func TestCleanTags(t *testing.T) {
	in := []string{" work ", "Work", "", "dev", strings.Repeat("x", model.MaxTagLength+10)}
	out := cleanTags(in)
	if len(out) != 3 {
		t.Fatalf("got %d tags, want 3: %v", len(out), out)
	}
	if out[0] != "work" || out[1] != "dev" {
		t.Errorf("tags = %v", out)
	}
	if len(out[2]) != model.MaxTagLength {
		t.Errorf("long tag length = %d, want %d", len(out[2]), model.MaxTagLength)
	}

	many := make([]string, model.MaxTagsPerCredential+5)
	for i := range many {
		many[i] = strings.Repeat("t", i+1)
	}
	if got := cleanTags(many); len(got) != model.MaxTagsPerCredential {
		t.Errorf("got %d tags, want %d", len(got), model.MaxTagsPerCredential)
	}
}

func TestCleanTitleClamp(t *testing.T) {
	long := strings.Repeat("a", model.MaxTitleLength+50)
	if got := cleanTitle(long); len(got) != model.MaxTitleLength {
		t.Errorf("title length = %d, want %d", len(got), model.MaxTitleLength)
	}
}

func TestNormalizeTOTP(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"JBSWY3DPEHPK3PXP", "JBSWY3DPEHPK3PXP"},
		{"otpauth://totp/a?secret=ABC234&digits=6", "ABC234"},
		{"otpauth://totp/a?issuer=x&secret=ABC234", "ABC234"},
		{"otpauth://totp/noparams", "otpauth://totp/noparams"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeTOTP(tt.in); got != tt.want {
			t.Errorf("normalizeTOTP(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHostname(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://www.example.com/login", "example.com"},
		{"http://sub.example.com:8080", "sub.example.com"},
		{"example.com", "example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := hostname(tt.in); got != tt.want {
			t.Errorf("hostname(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
