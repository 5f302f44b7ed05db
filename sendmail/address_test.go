package sendmail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validAddresses = []string{
	"bob@example.com",
	"first.last+tag@sub.example.org",
	"o'brien@example.co.uk",
	"x@localhost",
}

var invalidAddresses = []string{
	"",
	"bob",
	"@example.com",
	"bob@",
	"bob@@example.com",
	"bob example.com",
	"Bob <bob@example.com>",
}

func TestRecipient_ValidAddresses(t *testing.T) {
	t.Parallel()

	for _, addr := range validAddresses {
		addr := addr
		t.Run(addr, func(t *testing.T) {
			t.Parallel()

			r, err := AddressOnly(addr)
			require.NoError(t, err)
			assert.Equal(t, addr, r.Address())
			assert.Equal(t, To, r.Role())

			r, err = NewRecipient("Someone", addr, Bcc)
			require.NoError(t, err)
			assert.Equal(t, addr, r.Address())
			assert.Equal(t, Bcc, r.Role())
		})
	}
}

func TestRecipient_InvalidAddresses(t *testing.T) {
	t.Parallel()

	for _, addr := range invalidAddresses {
		addr := addr
		t.Run(addr, func(t *testing.T) {
			t.Parallel()

			_, err := AddressOnly(addr)
			assert.ErrorIs(t, err, ErrInvalidAddress)

			_, err = NewRecipient("Someone", addr, Cc)
			assert.ErrorIs(t, err, ErrInvalidAddress)
		})
	}
}

func TestSender_InvalidAddresses(t *testing.T) {
	t.Parallel()

	for _, addr := range invalidAddresses {
		addr := addr
		t.Run(addr, func(t *testing.T) {
			t.Parallel()

			_, err := NewSender(addr, "pw", "", Gmail, "reply@example.com")
			assert.ErrorIs(t, err, ErrInvalidAddress)

			_, err = NewSender("alice@example.com", "pw", "", Gmail, addr)
			assert.ErrorIs(t, err, ErrInvalidAddress)
		})
	}
}

func TestRecipient_Name(t *testing.T) {
	t.Parallel()

	r, err := NewRecipient("", "bob@example.com", To)
	require.NoError(t, err)
	name, ok := r.Name()
	assert.False(t, ok)
	assert.Empty(t, name)
	assert.Equal(t, "<bob@example.com>", r.Mailbox().String())

	r, err = NewRecipient("  Bob Smith ", "bob@example.com", To)
	require.NoError(t, err)
	name, ok = r.Name()
	assert.True(t, ok)
	assert.Equal(t, "  Bob Smith ", name)
}

func TestNewRecipient_UnknownRole(t *testing.T) {
	t.Parallel()

	_, err := NewRecipient("", "bob@example.com", Role(7))
	assert.ErrorContains(t, err, "unknown recipient role")
}

func TestParseRecipient(t *testing.T) {
	t.Parallel()

	r, err := ParseRecipient("Bob Smith <bob@example.com>", Cc)
	require.NoError(t, err)
	name, ok := r.Name()
	assert.True(t, ok)
	assert.Equal(t, "Bob Smith", name)
	assert.Equal(t, "bob@example.com", r.Address())
	assert.Equal(t, Cc, r.Role())

	r, err = ParseRecipient("carol@example.com", Bcc)
	require.NoError(t, err)
	_, ok = r.Name()
	assert.False(t, ok)

	_, err = ParseRecipient("not an address", To)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Role{"to": To, "CC": Cc, " Bcc ": Bcc} {
		got, err := ParseRole(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseRole("from")
	assert.Error(t, err)
	assert.Equal(t, "Role(9)", Role(9).String())
}

func TestMailbox_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"Alice" <alice@example.com>`, Mailbox{Name: "Alice", Address: "alice@example.com"}.String())
	assert.Equal(t, "<bob@example.com>", Mailbox{Address: "bob@example.com"}.String())
}
